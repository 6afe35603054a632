package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/agonych/udp-chat/pkg/protocol"
)

func TestTransportErrorMessage(t *testing.T) {
	err := &TransportError{Message: "Session ID not found"}
	if got := err.Error(); got != "server error: Session ID not found" {
		t.Errorf("Expected formatted transport error, got %q", got)
	}
}

func TestDialTimesOutWithoutResponse(t *testing.T) {
	// A socket that swallows the handshake.
	mute, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to bind: %v", err)
	}
	defer mute.Close()

	start := time.Now()
	_, err = Dial(context.Background(), mute.LocalAddr().String(),
		WithHandshakeTimeout(200*time.Millisecond))
	if err == nil {
		t.Fatal("Expected the handshake to time out")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Expected a prompt timeout, took %v", elapsed)
	}
}

func TestDialSurfacesHandshakeError(t *testing.T) {
	peer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to bind: %v", err)
	}
	defer peer.Close()

	go func() {
		buf := make([]byte, 65535)
		n, addr, err := peer.ReadFromUDP(buf)
		if err != nil {
			return
		}
		var req protocol.SessionInitRequest
		if json.Unmarshal(buf[:n], &req) != nil || req.Type != protocol.TypeSessionInit || req.ClientKey == "" {
			return
		}
		payload, _ := json.Marshal(protocol.ServerError{
			Type:    protocol.TypeServerError,
			Message: "Missing client's public key",
		})
		_, _ = peer.WriteToUDP(payload, addr)
	}()

	_, err = Dial(context.Background(), peer.LocalAddr().String(),
		WithHandshakeTimeout(5*time.Second))
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Expected a transport error, got %v", err)
	}
	if terr.Message != "Missing client's public key" {
		t.Errorf("Expected the server's message, got %q", terr.Message)
	}
}

func TestDialRejectsUnexpectedResponseType(t *testing.T) {
	peer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to bind: %v", err)
	}
	defer peer.Close()

	go func() {
		buf := make([]byte, 65535)
		_, addr, err := peer.ReadFromUDP(buf)
		if err != nil {
			return
		}
		_, _ = peer.WriteToUDP([]byte(`{"type":"SURPRISE"}`), addr)
	}()

	_, err = Dial(context.Background(), peer.LocalAddr().String(),
		WithHandshakeTimeout(5*time.Second))
	if err == nil {
		t.Fatal("Expected the handshake to fail")
	}
}
