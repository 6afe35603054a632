package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agonych/udp-chat/pkg/config"
)

// servingChat implements handlers.ChatServer for tests. The flag is
// atomic because handler goroutines read it while the test flips it.
type servingChat struct {
	serving atomic.Bool
}

func (c *servingChat) Serving() bool { return c.serving.Load() }

// okStore implements handlers.Store for tests.
type okStore struct{}

func (okStore) Ping(ctx context.Context) error { return nil }

func testConfig(port int) config.APIConfig {
	enabled := true
	return config.APIConfig{
		Enabled:      &enabled,
		Host:         "127.0.0.1",
		Port:         port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  10 * time.Second,
	}
}

func TestServerLifecycle(t *testing.T) {
	chat := &servingChat{}
	chat.serving.Store(true)
	server := NewServer(testConfig(18800), chat, okStore{})

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx)
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", server.Addr()))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", contentType)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", body.Status)
	}

	// Shutdown
	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Expected nil on graceful shutdown, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shutdown in time")
	}
}

func TestServerReadiness(t *testing.T) {
	chat := &servingChat{}
	server := NewServer(testConfig(18801), chat, okStore{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	url := fmt.Sprintf("http://%s/ready", server.Addr())

	// Not ready while the UDP listener is down
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, resp.StatusCode)
	}

	// Ready once the listener reports serving
	chat.serving.Store(true)
	resp, err = http.Get(url)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestServerAppliesDefaults(t *testing.T) {
	server := NewServer(config.APIConfig{}, nil, nil)

	if server.Port() != 8000 {
		t.Errorf("Expected default port 8000, got %d", server.Port())
	}
	if server.Addr() != "127.0.0.1:8000" {
		t.Errorf("Expected default addr '127.0.0.1:8000', got '%s'", server.Addr())
	}
}
