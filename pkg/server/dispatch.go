package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/agonych/udp-chat/internal/telemetry"
	"github.com/agonych/udp-chat/pkg/protocol"
	"github.com/agonych/udp-chat/pkg/store/models"
)

// Handler processes one decoded application packet. A non-nil response
// is delivered to the caller's session through the retry dispatcher; a
// nil response with a nil error means the packet needs no direct reply.
// A returned error surfaces to the peer as a plaintext transport error.
type Handler func(ctx context.Context, req *Request) (*protocol.Packet, error)

// Request is the per-packet context handed to handlers: the session row
// the envelope decrypted under, the peer address it arrived from and
// the decoded inner packet.
type Request struct {
	Session *models.Session
	Addr    *net.UDPAddr
	Packet  *protocol.Packet
}

// DecodeData unmarshals the inner packet's data into v.
func (r *Request) DecodeData(v any) error {
	return r.Packet.DecodeData(v)
}

// authGate maps packet types that require a bound user to the error
// message sent when there is none.
var authGate = map[string]string{
	protocol.PacketLogout:       "You are not logged in.",
	protocol.PacketCreateRoom:   "Authentication required.",
	protocol.PacketJoinRoom:     "Authentication required.",
	protocol.PacketLeaveRoom:    "Authentication required.",
	protocol.PacketMessage:      "Authentication required.",
	protocol.PacketAIMessage:    "Authentication required.",
	protocol.PacketListMessages: "Authentication required.",
	protocol.PacketListMembers:  "Authentication required.",
}

func (s *Server) buildHandlers() map[string]Handler {
	return map[string]Handler{
		protocol.PacketHello:        s.handleHello,
		protocol.PacketLogin:        s.handleLogin,
		protocol.PacketLogout:       s.handleLogout,
		protocol.PacketStatus:       s.handleStatus,
		protocol.PacketMergeSession: s.handleMergeSession,
		protocol.PacketListRooms:    s.handleListRooms,
		protocol.PacketCreateRoom:   s.handleCreateRoom,
		protocol.PacketJoinRoom:     s.handleJoinRoom,
		protocol.PacketLeaveRoom:    s.handleLeaveRoom,
		protocol.PacketMessage:      s.handleMessage,
		protocol.PacketAIMessage:    s.handleAIMessage,
		protocol.PacketListMessages: s.handleListMessages,
		protocol.PacketListMembers:  s.handleListMembers,
		protocol.PacketAck:          s.handleAck,
	}
}

// dispatch routes one decrypted packet to its handler. Handlers run on
// the receive goroutine; anything they emit (broadcasts first, then the
// direct response) leaves through the retry dispatcher.
func (s *Server) dispatch(ctx context.Context, row *models.Session, addr *net.UDPAddr, packet *protocol.Packet) {
	start := time.Now()
	ctx, span := telemetry.StartPacketSpan(ctx, packet.Type, row.SessionID)
	defer span.End()

	handler, ok := s.handlers[packet.Type]
	if !ok {
		s.retry.Enqueue(row.SessionID, protocol.ErrorPacket(
			fmt.Sprintf("Unknown packet type: %s", packet.Type)))
		s.recordPacket(packet.Type, start, "unknown")
		return
	}

	if msg, gated := authGate[packet.Type]; gated && !row.IsAuthenticated() {
		s.retry.Enqueue(row.SessionID, protocol.ErrorPacket(msg))
		s.recordPacket(packet.Type, start, "auth")
		return
	}

	req := &Request{Session: row, Addr: addr, Packet: packet}
	resp, err := handler(ctx, req)
	if err != nil {
		telemetry.RecordError(ctx, err)
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		s.recordPacket(packet.Type, start, "handler")
		return
	}
	if resp != nil {
		s.retry.Enqueue(row.SessionID, resp)
	}
	s.recordPacket(packet.Type, start, "")
}

func (s *Server) recordPacket(packetType string, start time.Time, errorCode string) {
	if s.metrics != nil {
		s.metrics.RecordPacket(packetType, time.Since(start), errorCode)
	}
}
