package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so aggregated
// logs stay queryable by session, user and room.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Packets & Protocol
	// ========================================================================
	KeyPacketType = "packet_type" // Inner packet type: HELLO, LOGIN, SEND_MSG, etc.
	KeyMsgID      = "msg_id"      // Packet message ID (32 hex chars)
	KeyNonce      = "nonce"       // Envelope nonce (hex)
	KeyBytes      = "bytes"       // Datagram size in bytes

	// ========================================================================
	// Session & Handshake
	// ========================================================================
	KeySessionID   = "session_id"  // Session identifier (32 hex chars)
	KeyFingerprint = "fingerprint" // Public key fingerprint (hex SHA-256)

	// ========================================================================
	// Client Identification
	// ========================================================================
	KeyClientAddr = "client_addr" // Client UDP address (host:port)
	KeyUserID     = "user_id"     // Application user ID (32 hex chars)
	KeyEmail      = "email"       // User email address

	// ========================================================================
	// Rooms & Messages
	// ========================================================================
	KeyRoomID   = "room_id"     // Room identifier (32 hex chars)
	KeyRoomName = "room_name"   // Room display name
	KeyMembers  = "members"     // Member count
	KeyContent  = "content_len" // Message content length

	// ========================================================================
	// AI Generation
	// ========================================================================
	KeyAIMode  = "ai_mode"  // Configured AI backend: ollama, gpt, off
	KeyAIModel = "ai_model" // Model name used for generation

	// ========================================================================
	// Delivery & Retries
	// ========================================================================
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
	KeyQueueLen   = "queue_len"   // Pending entries in the retry queue

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyComponent  = "component"   // Subsystem name: server, retry, sweeper, api
	KeyAddr       = "addr"        // Local listen address
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyCount      = "count"       // Generic count (rows purged, packets sent, ...)
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Packets & Protocol
// ----------------------------------------------------------------------------

// PacketType returns a slog.Attr for the inner packet type
func PacketType(t string) slog.Attr {
	return slog.String(KeyPacketType, t)
}

// MsgID returns a slog.Attr for a packet message ID
func MsgID(id string) slog.Attr {
	return slog.String(KeyMsgID, id)
}

// Nonce returns a slog.Attr for an envelope nonce
func Nonce(n string) slog.Attr {
	return slog.String(KeyNonce, n)
}

// Bytes returns a slog.Attr for a datagram size
func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

// ----------------------------------------------------------------------------
// Session & Handshake
// ----------------------------------------------------------------------------

// SessionID returns a slog.Attr for a session identifier
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// Fingerprint returns a slog.Attr for a key fingerprint (formatted as hex)
func Fingerprint(fp []byte) slog.Attr {
	return slog.String(KeyFingerprint, fmt.Sprintf("%x", fp))
}

// FingerprintHex returns a slog.Attr for a fingerprint already in hex form
func FingerprintHex(fp string) slog.Attr {
	return slog.String(KeyFingerprint, fp)
}

// ----------------------------------------------------------------------------
// Client Identification
// ----------------------------------------------------------------------------

// ClientAddr returns a slog.Attr for a client UDP address
func ClientAddr(addr string) slog.Attr {
	return slog.String(KeyClientAddr, addr)
}

// UserID returns a slog.Attr for an application user ID
func UserID(id string) slog.Attr {
	return slog.String(KeyUserID, id)
}

// Email returns a slog.Attr for a user email
func Email(email string) slog.Attr {
	return slog.String(KeyEmail, email)
}

// ----------------------------------------------------------------------------
// Rooms & Messages
// ----------------------------------------------------------------------------

// RoomID returns a slog.Attr for a room identifier
func RoomID(id string) slog.Attr {
	return slog.String(KeyRoomID, id)
}

// RoomName returns a slog.Attr for a room display name
func RoomName(name string) slog.Attr {
	return slog.String(KeyRoomName, name)
}

// Members returns a slog.Attr for a member count
func Members(n int) slog.Attr {
	return slog.Int(KeyMembers, n)
}

// ContentLen returns a slog.Attr for a message content length
func ContentLen(n int) slog.Attr {
	return slog.Int(KeyContent, n)
}

// ----------------------------------------------------------------------------
// AI Generation
// ----------------------------------------------------------------------------

// AIMode returns a slog.Attr for the configured AI backend
func AIMode(mode string) slog.Attr {
	return slog.String(KeyAIMode, mode)
}

// AIModel returns a slog.Attr for the model used for generation
func AIModel(model string) slog.Attr {
	return slog.String(KeyAIModel, model)
}

// ----------------------------------------------------------------------------
// Delivery & Retries
// ----------------------------------------------------------------------------

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// QueueLen returns a slog.Attr for the retry queue depth
func QueueLen(n int) slog.Attr {
	return slog.Int(KeyQueueLen, n)
}

// ----------------------------------------------------------------------------
// Operation Metadata
// ----------------------------------------------------------------------------

// Component returns a slog.Attr for a subsystem name
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Addr returns a slog.Attr for a local listen address
func Addr(addr string) slog.Attr {
	return slog.String(KeyAddr, addr)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Count returns a slog.Attr for a generic count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}
