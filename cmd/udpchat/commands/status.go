package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agonych/udp-chat/internal/cli/health"
	"github.com/agonych/udp-chat/internal/cli/output"
	"github.com/agonych/udp-chat/internal/cli/timeutil"
	"github.com/agonych/udp-chat/pkg/client"
	"github.com/agonych/udp-chat/pkg/config"
	"github.com/agonych/udp-chat/pkg/protocol"
)

var (
	statusOutput  string
	statusAddr    string
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe server health over UDP",
	Long: `Probe a running UDPChat-AI server the way a client would.

The probe performs the full encryption handshake, verifies the server's
key signature, and measures a HELLO round-trip over the established
session. When the server address comes from the configuration, the ops
HTTP endpoint is checked as well and its uptime reported.

Exits 0 when the server answered the probe, 1 otherwise.

Examples:
  # Probe the configured server
  udpchat status

  # Probe a remote server
  udpchat status --server chat.example.com:9999

  # Output as JSON
  udpchat status -o json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "server", "", "Server address to probe (default: from config)")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 3*time.Second, "Probe timeout")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ProbeResult is the outcome of a UDP health probe, plus the ops HTTP
// endpoint's view when one was reachable.
type ProbeResult struct {
	Server      string  `json:"server" yaml:"server"`
	Healthy     bool    `json:"healthy" yaml:"healthy"`
	Fingerprint string  `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	SessionID   string  `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	RTTMillis   float64 `json:"rtt_ms,omitempty" yaml:"rtt_ms,omitempty"`
	Greeting    string  `json:"greeting,omitempty" yaml:"greeting,omitempty"`
	Error       string  `json:"error,omitempty" yaml:"error,omitempty"`

	API        string `json:"api,omitempty" yaml:"api,omitempty"`
	APIHealthy bool   `json:"api_healthy,omitempty" yaml:"api_healthy,omitempty"`
	StartedAt  string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime     string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	APIError   string `json:"api_error,omitempty" yaml:"api_error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	addr := statusAddr
	var cfg *config.Config
	if addr == "" {
		if cfg, err = config.MustLoad(GetConfigFile()); err != nil {
			return err
		}
		addr = serverAddr(cfg)
	}

	result := probeServer(context.Background(), addr, statusTimeout)

	// The ops endpoint location is only known for the configured server.
	if cfg != nil && cfg.API.APIEnabled() {
		probeAPI(&result, apiURL(cfg), statusTimeout)
	}

	switch format {
	case output.FormatJSON:
		if err := output.PrintJSON(os.Stdout, result); err != nil {
			return err
		}
	case output.FormatYAML:
		if err := output.PrintYAML(os.Stdout, result); err != nil {
			return err
		}
	default:
		printProbeTable(result)
	}

	if !result.Healthy {
		os.Exit(1)
	}
	return nil
}

// probeServer dials the server, completes the handshake and measures one
// HELLO round-trip over the encrypted session.
func probeServer(ctx context.Context, addr string, timeout time.Duration) ProbeResult {
	result := ProbeResult{Server: addr}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cl, err := client.Dial(probeCtx, addr, client.WithHandshakeTimeout(timeout))
	if err != nil {
		result.Error = fmt.Sprintf("handshake failed: %v", err)
		return result
	}
	defer func() { _ = cl.Close() }()

	result.Fingerprint = cl.Fingerprint()
	result.SessionID = cl.SessionID()

	start := time.Now()
	if err := cl.Send(protocol.PacketHello, nil); err != nil {
		result.Error = fmt.Sprintf("HELLO send failed: %v", err)
		return result
	}
	pkt, err := cl.WaitFor(probeCtx, protocol.PacketHello)
	if err != nil {
		result.Error = fmt.Sprintf("HELLO round-trip failed: %v", err)
		return result
	}

	result.RTTMillis = float64(time.Since(start).Microseconds()) / 1000.0
	result.Greeting = pkt.Message
	result.Healthy = true
	return result
}

// apiURL builds the ops endpoint base URL from the configuration,
// substituting loopback for wildcard binds.
func apiURL(cfg *config.Config) string {
	host := cfg.API.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.API.Port)
}

// probeAPI queries the ops HTTP endpoint's liveness probe and records
// its uptime report.
func probeAPI(result *ProbeResult, baseURL string, timeout time.Duration) {
	result.API = baseURL

	httpClient := &http.Client{Timeout: timeout}
	resp, err := httpClient.Get(baseURL + "/health")
	if err != nil {
		result.APIError = err.Error()
		return
	}
	defer func() { _ = resp.Body.Close() }()

	var healthResp health.Response
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		result.APIError = "failed to parse health response"
		return
	}

	result.APIHealthy = healthResp.Status == "healthy"
	result.StartedAt = healthResp.Data.StartedAt
	result.Uptime = healthResp.Data.Uptime
	if healthResp.Error != "" {
		result.APIError = healthResp.Error
	}
}

func printProbeTable(result ProbeResult) {
	fmt.Println()
	fmt.Println("UDPChat-AI Server Status")
	fmt.Println("========================")
	fmt.Println()
	fmt.Printf("  Server:       %s\n", result.Server)

	if result.Healthy {
		fmt.Printf("  Status:       \033[32m● Healthy\033[0m\n")
		fmt.Printf("  Fingerprint:  %s\n", result.Fingerprint)
		fmt.Printf("  Session:      %s\n", result.SessionID)
		fmt.Printf("  HELLO RTT:    %.2fms\n", result.RTTMillis)
		if result.Greeting != "" {
			fmt.Printf("  Greeting:     %s\n", result.Greeting)
		}
	} else {
		fmt.Printf("  Status:       \033[31m○ Unreachable\033[0m\n")
		if result.Error != "" {
			fmt.Printf("  Error:        %s\n", result.Error)
		}
	}

	if result.API != "" {
		fmt.Println()
		fmt.Printf("  Ops API:      %s\n", result.API)
		if result.APIHealthy {
			fmt.Printf("  API status:   \033[32m● Healthy\033[0m\n")
			if result.StartedAt != "" {
				fmt.Printf("  Started:      %s\n", timeutil.FormatTime(result.StartedAt))
			}
			if result.Uptime != "" {
				fmt.Printf("  Uptime:       %s\n", timeutil.FormatUptime(result.Uptime))
			}
		} else {
			fmt.Printf("  API status:   \033[31m○ Unreachable\033[0m\n")
			if result.APIError != "" {
				fmt.Printf("  API error:    %s\n", result.APIError)
			}
		}
	}
	fmt.Println()
}
