// Package server implements the UDP chat server: the RSA/AES session
// handshake, the encrypted SECURE_MSG transport with nonce replay
// protection, the application packet dispatcher and the retry queue
// that redelivers unacknowledged packets.
//
// A single goroutine owns the socket and processes one datagram at a
// time, which is also the only goroutine that writes to the repository;
// the sweeper and the retry dispatcher hand their writes back to it
// through a deferred-write queue.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agonych/udp-chat/internal/logger"
	"github.com/agonych/udp-chat/internal/telemetry"
	"github.com/agonych/udp-chat/pkg/ai"
	"github.com/agonych/udp-chat/pkg/auth"
	"github.com/agonych/udp-chat/pkg/config"
	"github.com/agonych/udp-chat/pkg/keys"
	"github.com/agonych/udp-chat/pkg/metrics"
	"github.com/agonych/udp-chat/pkg/protocol"
	"github.com/agonych/udp-chat/pkg/store"
)

// Transport-level error messages. These travel in plaintext
// SERVER_ERROR envelopes and are part of the wire contract.
const (
	errMissingClientKey = "Missing client's public key"
	errIncompleteFormat = "Message format is incomplete"
	errSessionNotFound  = "Session ID not found"
	errNonceReused      = "This nonce was already used"
	errDecryptFailed    = "Message decryption failed"
)

// Server is the UDP chat server.
type Server struct {
	config   config.ServerConfig
	store    *store.GORMStore
	metrics  metrics.ServerMetrics
	identity *keys.Identity
	hasher   *auth.Hasher

	assistant ai.Provider
	aiMode    string
	aiModel   string
	aiTimeout time.Duration

	sessions *sessionTable
	retry    *retryDispatcher
	deferred *writeQueue
	handlers map[string]Handler

	conn *net.UDPConn

	shutdown      chan struct{}
	shutdownOnce  sync.Once
	wg            sync.WaitGroup
	listenerReady chan struct{}
	serving       atomic.Bool
	cleanup       atomic.Bool
}

// New assembles a server from configuration. It loads (or creates) the
// RSA identity and builds the assistant provider, but does not bind the
// socket; that happens in Serve.
//
// metrics may be nil to disable instrumentation.
func New(cfg *config.Config, st *store.GORMStore, m metrics.ServerMetrics) (*Server, error) {
	identity, err := keys.LoadOrCreate(cfg.Keys.Dir)
	if err != nil {
		return nil, fmt.Errorf("load server identity: %w", err)
	}

	hasher, err := auth.NewHasher(auth.Scheme(cfg.Auth.PasswordHash))
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	aiTimeout := cfg.AI.Timeout
	if aiTimeout <= 0 {
		aiTimeout = 30 * time.Second
	}

	s := &Server{
		config:        cfg.Server,
		store:         st,
		metrics:       m,
		identity:      identity,
		hasher:        hasher,
		aiTimeout:     aiTimeout,
		sessions:      newSessionTable(),
		deferred:      newWriteQueue(),
		shutdown:      make(chan struct{}),
		listenerReady: make(chan struct{}),
	}
	s.assistant, s.aiMode, s.aiModel = buildProvider(cfg.AI)
	s.retry = newRetryDispatcher(cfg.Server, s.sessions, s.transmit, m)
	s.handlers = s.buildHandlers()

	return s, nil
}

// buildProvider resolves the assistant backend from configuration. A
// nil provider means AI_MESSAGE requests are answered with an error;
// the mode check happens per request, matching the original deployment.
func buildProvider(cfg config.AIConfig) (ai.Provider, string, string) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	switch cfg.Mode {
	case "gpt":
		p := ai.NewGPT(cfg.OpenAIBaseURL, cfg.APIKey, cfg.Model, timeout)
		return p, "gpt", p.Model()
	case "ollama", "":
		p := ai.NewOllama(cfg.OllamaHost, cfg.Model, timeout)
		return p, "ollama", p.Model()
	default:
		return nil, cfg.Mode, ""
	}
}

// Serve binds the UDP socket and runs the receive loop. It blocks until
// the context is cancelled or Stop is called. WaitReady() unblocks once
// the socket is bound.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve UDP %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen UDP %s: %w", addr, err)
	}
	s.conn = conn

	close(s.listenerReady)
	s.serving.Store(true)
	defer s.serving.Store(false)

	logger.Info("UDP chat server started",
		logger.Addr(conn.LocalAddr().String()),
		logger.FingerprintHex(s.identity.Fingerprint))

	s.retry.Start()
	s.wg.Add(1)
	go s.runSweeper(ctx)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.shutdown:
		}
	}()

	s.wg.Add(1)
	go s.receiveLoop(ctx)

	s.wg.Wait()
	return nil
}

// WaitReady returns a channel that is closed once the socket is bound.
// Callers should select on it with a timeout to detect startup failure.
func (s *Server) WaitReady() <-chan struct{} {
	return s.listenerReady
}

// Serving reports whether the receive loop is currently running. The
// readiness probe uses it.
func (s *Server) Serving() bool {
	return s.serving.Load()
}

// UDPAddr returns the bound socket address (for tests and probes).
// Empty until Serve has bound the socket.
func (s *Server) UDPAddr() string {
	if s.conn != nil {
		return s.conn.LocalAddr().String()
	}
	return ""
}

// Stop shuts the server down: the receive loop exits on its next
// deadline, the sweeper and the retry dispatcher stop, pending deferred
// writes are flushed and the socket closes. Safe to call more than
// once. Blocks until all goroutines have finished.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
	})
	s.wg.Wait()
}

// receiveLoop is the single goroutine that owns the socket. Every
// repository write happens here, either directly while handling a
// datagram or by draining the deferred-write queue between datagrams.
func (s *Server) receiveLoop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		s.retry.Stop()
		s.deferred.Drain(ctx)
		_ = s.conn.Close()
	}()

	buf := make([]byte, s.config.BufferSize)

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		s.deferred.Drain(ctx)

		if s.cleanup.CompareAndSwap(true, false) {
			s.purgeExpiredSessions(ctx)
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				logger.Warn("Failed to set read deadline", logger.Err(err))
				continue
			}
		}

		n, clientAddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-s.shutdown:
				return
			default:
				logger.Warn("UDP read error", logger.Err(err))
				continue
			}
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		s.handleDatagram(ctx, datagram, clientAddr)
	}
}

// handleDatagram routes one datagram by its envelope type. Handler
// errors and panics surface as plaintext transport errors; nothing a
// peer sends can stop the loop.
func (s *Server) handleDatagram(ctx context.Context, datagram []byte, addr *net.UDPAddr) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanDatagram)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while processing datagram",
				logger.ClientAddr(addr.String()),
				"panic", fmt.Sprint(r))
			s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", r))
		}
	}()

	var head protocol.EnvelopeHead
	if err := json.Unmarshal(datagram, &head); err != nil {
		logger.Debug("Undecodable datagram",
			logger.ClientAddr(addr.String()),
			logger.Bytes(len(datagram)))
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}

	switch head.Type {
	case protocol.TypeSessionInit:
		s.handleSessionInit(ctx, datagram, addr)
	case protocol.TypeSecureMsg:
		s.handleSecureMessage(ctx, datagram, addr)
	default:
		s.sendServerError(addr, fmt.Sprintf("Unknown message type '%s'", head.Type))
	}
}

// sendServerError emits a plaintext SERVER_ERROR envelope. This is the
// only reply possible before a shared key exists.
func (s *Server) sendServerError(addr *net.UDPAddr, message string) {
	payload, err := json.Marshal(protocol.ServerError{
		Type:    protocol.TypeServerError,
		Message: message,
	})
	if err != nil {
		return
	}
	if _, err := s.conn.WriteToUDP(payload, addr); err != nil {
		logger.Debug("Failed to send transport error",
			logger.ClientAddr(addr.String()),
			logger.Err(err))
	}
}

// writeQueue collects repository writes produced off the receive
// goroutine (egress nonce records, session touches) so they execute on
// it. Keeping a single writer is what lets the sqlite backend run
// without lock contention.
type writeQueue struct {
	mu  sync.Mutex
	ops []func(ctx context.Context)
}

func newWriteQueue() *writeQueue {
	return &writeQueue{}
}

// Push appends a deferred write.
func (q *writeQueue) Push(op func(ctx context.Context)) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.mu.Unlock()
}

// Drain runs all queued writes in order. Called at the top of every
// receive iteration and once more on shutdown.
func (q *writeQueue) Drain(ctx context.Context) {
	q.mu.Lock()
	ops := q.ops
	q.ops = nil
	q.mu.Unlock()

	for _, op := range ops {
		op(ctx)
	}
}

// Len returns the number of pending writes.
func (q *writeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}
