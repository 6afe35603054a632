// Package api provides the HTTP operations endpoint for the chat server:
// liveness and readiness probes plus Prometheus metrics. Chat traffic never
// touches this server; it exists for monitoring and orchestration.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/agonych/udp-chat/internal/logger"
	"github.com/agonych/udp-chat/pkg/api/handlers"
	"github.com/agonych/udp-chat/pkg/config"
)

// Server provides an HTTP server for the operations API.
//
// Endpoints:
//   - GET /health: Liveness probe with uptime
//   - GET /ready: Readiness probe (UDP listener + database)
//   - GET /metrics: Prometheus metrics
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       config.APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new operations HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
//
// Defaults are applied here to ensure the server works correctly even when
// created directly (e.g., in tests). This is idempotent with the defaults
// applied during config loading.
//
// Parameters:
//   - cfg: Server configuration (bind address, timeouts)
//   - chat: UDP chat server for readiness checks (may be nil for liveness only)
//   - store: Database for readiness pings (may be nil for liveness only)
//
// Returns a configured but not yet started Server.
func NewServer(cfg config.APIConfig, chat handlers.ChatServer, store handlers.Store) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port <= 0 {
		cfg.Port = 8000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	router := NewRouter(chat, store)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		server: server,
		config: cfg,
	}
}

// Start starts the operations HTTP server and blocks until the context is
// cancelled or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and returns.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the server fails to start or shutdown encounters an error
func (s *Server) Start(ctx context.Context) error {
	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Ops API listening", "addr", s.server.Addr)
		logger.Debug("Ops API endpoints available",
			"health", fmt.Sprintf("http://%s/health", s.server.Addr),
			"ready", fmt.Sprintf("http://%s/ready", s.server.Addr),
			"metrics", fmt.Sprintf("http://%s/metrics", s.server.Addr),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		logger.Info("Ops API shutdown signal received")
		// Create new context with timeout for graceful shutdown
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("ops API failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the operations server.
//
// Stop is safe to call multiple times and safe to call concurrently with
// Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("Ops API shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("ops API shutdown error: %w", err)
			logger.Error("Ops API shutdown error", "error", err)
		} else {
			logger.Info("Ops API stopped gracefully")
		}
	})
	return shutdownErr
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
