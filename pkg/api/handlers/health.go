package handlers

import (
	"context"
	"net/http"
	"time"
)

// ChatServer reports whether the UDP listener is accepting datagrams.
// Implemented by the chat server; a nil value means the listener never
// started.
type ChatServer interface {
	Serving() bool
}

// Store verifies connectivity to the backing database.
type Store interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Is the UDP listener serving and the database reachable?
type HealthHandler struct {
	chat    ChatServer
	store   Store
	started time.Time
}

// NewHealthHandler creates a new health handler.
//
// Either dependency may be nil, in which case the readiness probe reports
// unhealthy for the missing component.
func NewHealthHandler(chat ChatServer, store Store) *HealthHandler {
	return &HealthHandler{
		chat:    chat,
		store:   store,
		started: time.Now(),
	}
}

// HealthData is the payload of the liveness response. The CLI status
// command decodes this shape.
type HealthData struct {
	Service   string `json:"service"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

// Health handles GET /health - simple liveness probe.
//
// Returns 200 OK as long as the HTTP server is responsive, along with the
// process uptime. Designed for Kubernetes liveness probes.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	up := time.Since(h.started)
	writeJSON(w, http.StatusOK, healthyResponse(HealthData{
		Service:   "udpchat",
		StartedAt: h.started.UTC().Format(time.RFC3339),
		Uptime:    up.Round(time.Second).String(),
		UptimeSec: int64(up.Seconds()),
	}))
}

// Ready handles GET /ready - readiness probe.
//
// Returns 200 OK once the UDP listener is accepting datagrams and the
// database answers a ping. Returns 503 Service Unavailable otherwise, so
// load balancers hold traffic during startup and database outages.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil || !h.chat.Serving() {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("udp listener not serving"))
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("store not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("database unreachable: "+err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"udp":      "serving",
		"database": "ok",
	}))
}
