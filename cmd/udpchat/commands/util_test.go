package commands

import (
	"testing"

	"github.com/agonych/udp-chat/pkg/config"
)

func TestServerAddr(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		want string
	}{
		{name: "explicit host", host: "192.168.1.5", port: 9999, want: "192.168.1.5:9999"},
		{name: "wildcard v4 becomes loopback", host: "0.0.0.0", port: 9999, want: "127.0.0.1:9999"},
		{name: "wildcard v6 becomes loopback", host: "::", port: 7000, want: "127.0.0.1:7000"},
		{name: "empty host becomes loopback", host: "", port: 9999, want: "127.0.0.1:9999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Server.Host = tt.host
			cfg.Server.Port = tt.port
			if got := serverAddr(cfg); got != tt.want {
				t.Errorf("serverAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyListenArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{name: "no args keeps config", args: nil, wantHost: "10.0.0.1", wantPort: 9999},
		{name: "ip only", args: []string{"0.0.0.0"}, wantHost: "0.0.0.0", wantPort: 9999},
		{name: "ip and port", args: []string{"0.0.0.0", "7000"}, wantHost: "0.0.0.0", wantPort: 7000},
		{name: "port not a number", args: []string{"0.0.0.0", "abc"}, wantErr: true},
		{name: "port out of range", args: []string{"0.0.0.0", "70000"}, wantErr: true},
		{name: "port zero", args: []string{"0.0.0.0", "0"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Server.Host = "10.0.0.1"
			cfg.Server.Port = 9999

			err := applyListenArgs(cfg, tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("applyListenArgs(%v) expected error, got nil", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("applyListenArgs(%v) unexpected error: %v", tt.args, err)
			}
			if cfg.Server.Host != tt.wantHost {
				t.Errorf("host = %q, want %q", cfg.Server.Host, tt.wantHost)
			}
			if cfg.Server.Port != tt.wantPort {
				t.Errorf("port = %d, want %d", cfg.Server.Port, tt.wantPort)
			}
		})
	}
}
