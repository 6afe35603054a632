package metrics

import (
	"time"
)

// ServerMetrics provides observability for the UDP chat server.
//
// Implementations can collect metrics about packet processing, session
// lifecycle, chat activity, AI generation and the retry dispatcher. This
// interface is optional - pass nil to disable metrics collection with
// zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics := prometheus.NewServerMetrics()
//	srv := server.New(config, store, metrics)
//
//	// Without metrics (pass nil for zero overhead)
//	srv := server.New(config, store, nil)
type ServerMetrics interface {
	// RecordPacket records a completed packet dispatch with its inner type,
	// duration, and outcome.
	//
	// Parameters:
	//   - packetType: inner packet type (e.g., "LOGIN", "MESSAGE")
	//   - duration: time taken to process the packet
	//   - errorCode: short failure label if dispatch failed (e.g., "auth",
	//     "handler"), empty if successful
	RecordPacket(packetType string, duration time.Duration, errorCode string)

	// SetActiveSessions updates the number of live client sessions.
	SetActiveSessions(count int)

	// SetActiveUsers updates the number of distinct authenticated users
	// across live sessions.
	SetActiveUsers(count int)

	// SetActiveRooms updates the number of rooms currently stored.
	SetActiveRooms(count int)

	// RecordLogin increments the successful login counter.
	RecordLogin()

	// RecordLogout increments the logout counter.
	RecordLogout()

	// RecordRoomCreated increments the room creation counter.
	RecordRoomCreated()

	// RecordRoomDeleted increments the room deletion counter.
	// Covers both explicit deletion and auto-destroy of emptied rooms.
	RecordRoomDeleted()

	// RecordRoomJoin increments the membership join counter.
	RecordRoomJoin()

	// RecordRoomLeave increments the membership leave counter.
	RecordRoomLeave()

	// RecordMessage increments the message counter.
	//
	// Parameters:
	//   - announcement: true for AI-generated messages, false for user
	//     messages
	RecordMessage(announcement bool)

	// RecordAIGeneration records an AI generation call with its backend,
	// model, duration, and outcome.
	//
	// Parameters:
	//   - mode: AI backend ("ollama", "gpt")
	//   - model: model name used for the call
	//   - duration: time taken by the provider
	//   - errorCode: short failure label, empty if successful
	RecordAIGeneration(mode string, model string, duration time.Duration, errorCode string)

	// RecordRetrySend increments the retransmission counter.
	// Counts resends only, not initial transmissions.
	RecordRetrySend()

	// RecordRetryDrop increments the counter of deliveries abandoned after
	// exhausting retries or overflowing the queue.
	RecordRetryDrop()
}
