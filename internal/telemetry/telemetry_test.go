package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "udpchat", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, ClientAddr("192.168.1.1:54321"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("ClientAddr", func(t *testing.T) {
		attr := ClientAddr("192.168.1.100:12345")
		assert.Equal(t, AttrClientAddr, string(attr.Key))
		assert.Equal(t, "192.168.1.100:12345", attr.Value.AsString())
	})

	t.Run("PacketType", func(t *testing.T) {
		attr := PacketType("SEND_MSG")
		assert.Equal(t, AttrPacketType, string(attr.Key))
		assert.Equal(t, "SEND_MSG", attr.Value.AsString())
	})

	t.Run("MsgID", func(t *testing.T) {
		attr := MsgID("0f2b9c4d1a8e7f60")
		assert.Equal(t, AttrMsgID, string(attr.Key))
		assert.Equal(t, "0f2b9c4d1a8e7f60", attr.Value.AsString())
	})

	t.Run("PacketBytes", func(t *testing.T) {
		attr := PacketBytes(512)
		assert.Equal(t, AttrPacketBytes, string(attr.Key))
		assert.Equal(t, int64(512), attr.Value.AsInt64())
	})

	t.Run("SessionID", func(t *testing.T) {
		attr := SessionID("0f2b9c4d1a8e7f60")
		assert.Equal(t, AttrSessionID, string(attr.Key))
		assert.Equal(t, "0f2b9c4d1a8e7f60", attr.Value.AsString())
	})

	t.Run("FingerprintHex", func(t *testing.T) {
		attr := FingerprintHex("abcd1234")
		assert.Equal(t, AttrFingerprint, string(attr.Key))
		assert.Equal(t, "abcd1234", attr.Value.AsString())
	})

	t.Run("UserID", func(t *testing.T) {
		attr := UserID("7c9a1b3d5e2f4a68")
		assert.Equal(t, AttrUserID, string(attr.Key))
		assert.Equal(t, "7c9a1b3d5e2f4a68", attr.Value.AsString())
	})

	t.Run("Email", func(t *testing.T) {
		attr := Email("alice@example.com")
		assert.Equal(t, AttrEmail, string(attr.Key))
		assert.Equal(t, "alice@example.com", attr.Value.AsString())
	})

	t.Run("RoomID", func(t *testing.T) {
		attr := RoomID("1a2b3c4d5e6f7a8b")
		assert.Equal(t, AttrRoomID, string(attr.Key))
		assert.Equal(t, "1a2b3c4d5e6f7a8b", attr.Value.AsString())
	})

	t.Run("RoomName", func(t *testing.T) {
		attr := RoomName("general")
		assert.Equal(t, AttrRoomName, string(attr.Key))
		assert.Equal(t, "general", attr.Value.AsString())
	})

	t.Run("Members", func(t *testing.T) {
		attr := Members(3)
		assert.Equal(t, AttrMembers, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})

	t.Run("MessageLen", func(t *testing.T) {
		attr := MessageLen(140)
		assert.Equal(t, AttrMessageLen, string(attr.Key))
		assert.Equal(t, int64(140), attr.Value.AsInt64())
	})

	t.Run("Announcement", func(t *testing.T) {
		attr := Announcement(true)
		assert.Equal(t, AttrAnnouncement, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("AIMode", func(t *testing.T) {
		attr := AIMode("ollama")
		assert.Equal(t, AttrAIMode, string(attr.Key))
		assert.Equal(t, "ollama", attr.Value.AsString())
	})

	t.Run("AIModel", func(t *testing.T) {
		attr := AIModel("mistral")
		assert.Equal(t, AttrAIModel, string(attr.Key))
		assert.Equal(t, "mistral", attr.Value.AsString())
	})

	t.Run("DBOperation", func(t *testing.T) {
		attr := DBOperation("user_by_email")
		assert.Equal(t, AttrDBOperation, string(attr.Key))
		assert.Equal(t, "user_by_email", attr.Value.AsString())
	})

	t.Run("RetryAttempt", func(t *testing.T) {
		attr := RetryAttempt(2)
		assert.Equal(t, AttrRetryAttempt, string(attr.Key))
		assert.Equal(t, int64(2), attr.Value.AsInt64())
	})

	t.Run("QueueLen", func(t *testing.T) {
		attr := QueueLen(17)
		assert.Equal(t, AttrQueueLen, string(attr.Key))
		assert.Equal(t, int64(17), attr.Value.AsInt64())
	})
}

func TestStartPacketSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartPacketSpan(ctx, "LOGIN", "0f2b9c4d1a8e7f60")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// Without a session ID
	newCtx2, span2 := StartPacketSpan(ctx, "HELLO", "")
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()

	// With additional attributes
	newCtx3, span3 := StartPacketSpan(ctx, "MESSAGE", "0f2b9c4d1a8e7f60", RoomID("1a2b"), MessageLen(42))
	require.NotNil(t, newCtx3)
	require.NotNil(t, span3)
	span3.End()
}

func TestStartStoreSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartStoreSpan(ctx, "room_by_id")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartStoreSpan(ctx, "create_message", DBTable("messages"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartAISpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartAISpan(ctx, "ollama", "mistral", ContextMessages(100))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartBroadcastSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartBroadcastSpan(ctx, "1a2b3c4d5e6f7a8b", Members(4))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}
