package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds packet-scoped logging context. One is created per
// received datagram and enriched as the packet moves through decryption,
// dispatch and the handler.
type LogContext struct {
	TraceID    string    // OpenTelemetry trace ID
	SpanID     string    // OpenTelemetry span ID
	PacketType string    // Inner packet type (HELLO, LOGIN, SEND_MSG, etc.)
	SessionID  string    // Session identifier
	ClientAddr string    // Client UDP address (host:port)
	UserID     string    // Authenticated user ID, if any
	RoomID     string    // Room the operation targets, if any
	StartTime  time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a datagram from the given client
func NewLogContext(clientAddr string) *LogContext {
	return &LogContext{
		ClientAddr: clientAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:    lc.TraceID,
		SpanID:     lc.SpanID,
		PacketType: lc.PacketType,
		SessionID:  lc.SessionID,
		ClientAddr: lc.ClientAddr,
		UserID:     lc.UserID,
		RoomID:     lc.RoomID,
		StartTime:  lc.StartTime,
	}
}

// WithPacket returns a copy with the packet type set
func (lc *LogContext) WithPacket(packetType string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.PacketType = packetType
	}
	return clone
}

// WithSession returns a copy with the session ID set
func (lc *LogContext) WithSession(sessionID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SessionID = sessionID
	}
	return clone
}

// WithUser returns a copy with the user ID set
func (lc *LogContext) WithUser(userID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.UserID = userID
	}
	return clone
}

// WithRoom returns a copy with the room ID set
func (lc *LogContext) WithRoom(roomID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.RoomID = roomID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
