package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for chat operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Client attributes
	// ========================================================================
	AttrClientAddr = "client.address"

	// ========================================================================
	// Packet attributes
	// ========================================================================
	AttrPacketType  = "packet.type"   // HELLO, LOGIN, SEND... inner packet type
	AttrMsgID       = "packet.msg_id" // Packet message ID (32 hex chars)
	AttrPacketBytes = "packet.bytes"  // Datagram size in bytes

	// ========================================================================
	// Session attributes
	// ========================================================================
	AttrSessionID   = "session.id"
	AttrFingerprint = "session.fingerprint" // Server key fingerprint (hex)

	// ========================================================================
	// User attributes
	// ========================================================================
	AttrUserID   = "user.id"
	AttrEmail    = "user.email"
	AttrUsername = "user.name"

	// ========================================================================
	// Room attributes
	// ========================================================================
	AttrRoomID   = "room.id"
	AttrRoomName = "room.name"
	AttrMembers  = "room.members"

	// ========================================================================
	// Message attributes
	// ========================================================================
	AttrMessageID    = "message.id"
	AttrMessageLen   = "message.length"
	AttrAnnouncement = "message.announcement"

	// ========================================================================
	// AI generation attributes
	// ========================================================================
	AttrAIMode          = "ai.mode"  // ollama, gpt, off
	AttrAIModel         = "ai.model" // model used for generation
	AttrContextMessages = "ai.context_messages"

	// ========================================================================
	// Store attributes
	// ========================================================================
	AttrDBOperation = "db.operation"
	AttrDBTable     = "db.table"

	// ========================================================================
	// Retry dispatcher attributes
	// ========================================================================
	AttrRetryAttempt = "retry.attempt"
	AttrQueueLen     = "retry.queue_len"
)

// Span names for operations.
// Format: <component>.<OPERATION> for packet spans
// Format: <component>.<operation> for internal operations
const (
	// ========================================================================
	// Transport spans
	// ========================================================================

	// Root span for datagram processing
	SpanDatagram = "udp.datagram"

	// Handshake and envelope spans
	SpanSessionInit = "handshake.SESSION_INIT"
	SpanSecureMsg   = "envelope.SECURE_MSG"

	// ========================================================================
	// Packet spans
	// ========================================================================
	SpanPacketHello        = "packet.HELLO"
	SpanPacketLogin        = "packet.LOGIN"
	SpanPacketLogout       = "packet.LOGOUT"
	SpanPacketStatus       = "packet.STATUS"
	SpanPacketMergeSession = "packet.MERGE_SESSION"
	SpanPacketListRooms    = "packet.LIST_ROOMS"
	SpanPacketCreateRoom   = "packet.CREATE_ROOM"
	SpanPacketJoinRoom     = "packet.JOIN_ROOM"
	SpanPacketLeaveRoom    = "packet.LEAVE_ROOM"
	SpanPacketMessage      = "packet.MESSAGE"
	SpanPacketAIMessage    = "packet.AI_MESSAGE"
	SpanPacketListMessages = "packet.LIST_MESSAGES"
	SpanPacketListMembers  = "packet.LIST_MEMBERS"
	SpanPacketAck          = "packet.ACK"

	// ========================================================================
	// Internal operations
	// ========================================================================
	SpanStoreQuery   = "store.query"
	SpanAIGenerate   = "ai.generate"
	SpanBroadcast    = "room.broadcast"
	SpanRetryFlush   = "retry.flush"
	SpanSessionSweep = "session.sweep"
)

// ClientAddr returns an attribute for the client UDP address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// PacketType returns an attribute for the inner packet type
func PacketType(t string) attribute.KeyValue {
	return attribute.String(AttrPacketType, t)
}

// MsgID returns an attribute for a packet message ID
func MsgID(id string) attribute.KeyValue {
	return attribute.String(AttrMsgID, id)
}

// PacketBytes returns an attribute for a datagram size
func PacketBytes(n int) attribute.KeyValue {
	return attribute.Int(AttrPacketBytes, n)
}

// SessionID returns an attribute for a session identifier
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// FingerprintHex returns an attribute for a key fingerprint in hex form
func FingerprintHex(fp string) attribute.KeyValue {
	return attribute.String(AttrFingerprint, fp)
}

// UserID returns an attribute for an application user ID
func UserID(id string) attribute.KeyValue {
	return attribute.String(AttrUserID, id)
}

// Email returns an attribute for a user email
func Email(email string) attribute.KeyValue {
	return attribute.String(AttrEmail, email)
}

// Username returns an attribute for a user display name
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

// RoomID returns an attribute for a room identifier
func RoomID(id string) attribute.KeyValue {
	return attribute.String(AttrRoomID, id)
}

// RoomName returns an attribute for a room display name
func RoomName(name string) attribute.KeyValue {
	return attribute.String(AttrRoomName, name)
}

// Members returns an attribute for a room member count
func Members(n int) attribute.KeyValue {
	return attribute.Int(AttrMembers, n)
}

// MessageID returns an attribute for a message identifier
func MessageID(id string) attribute.KeyValue {
	return attribute.String(AttrMessageID, id)
}

// MessageLen returns an attribute for a message content length
func MessageLen(n int) attribute.KeyValue {
	return attribute.Int(AttrMessageLen, n)
}

// Announcement returns an attribute marking AI-generated messages
func Announcement(a bool) attribute.KeyValue {
	return attribute.Bool(AttrAnnouncement, a)
}

// AIMode returns an attribute for the configured AI backend
func AIMode(mode string) attribute.KeyValue {
	return attribute.String(AttrAIMode, mode)
}

// AIModel returns an attribute for the model used for generation
func AIModel(model string) attribute.KeyValue {
	return attribute.String(AttrAIModel, model)
}

// ContextMessages returns an attribute for the AI context window size
func ContextMessages(n int) attribute.KeyValue {
	return attribute.Int(AttrContextMessages, n)
}

// DBOperation returns an attribute for a store operation name
func DBOperation(op string) attribute.KeyValue {
	return attribute.String(AttrDBOperation, op)
}

// DBTable returns an attribute for a store table name
func DBTable(table string) attribute.KeyValue {
	return attribute.String(AttrDBTable, table)
}

// RetryAttempt returns an attribute for a retry attempt number
func RetryAttempt(n int) attribute.KeyValue {
	return attribute.Int(AttrRetryAttempt, n)
}

// QueueLen returns an attribute for the retry queue depth
func QueueLen(n int) attribute.KeyValue {
	return attribute.Int(AttrQueueLen, n)
}

// StartPacketSpan starts a span for an inner packet handler.
// This is a convenience function that sets common attributes.
func StartPacketSpan(ctx context.Context, packetType, sessionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		PacketType(packetType),
	}
	if sessionID != "" {
		allAttrs = append(allAttrs, SessionID(sessionID))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "packet."+packetType, trace.WithAttributes(allAttrs...))
}

// StartStoreSpan starts a span for a database operation.
func StartStoreSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		DBOperation(operation),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "store."+operation, trace.WithAttributes(allAttrs...))
}

// StartAISpan starts a span for an AI generation call.
func StartAISpan(ctx context.Context, mode, model string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		AIMode(mode),
		AIModel(model),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanAIGenerate, trace.WithAttributes(allAttrs...))
}

// StartBroadcastSpan starts a span for a room fanout.
func StartBroadcastSpan(ctx context.Context, roomID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		RoomID(roomID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanBroadcast, trace.WithAttributes(allAttrs...))
}
