package server

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/agonych/udp-chat/pkg/config"
	"github.com/agonych/udp-chat/pkg/protocol"
	"github.com/agonych/udp-chat/pkg/store/models"
)

// newDispatchTestServer assembles just enough of a server to exercise
// the dispatcher: a bound socket, a live session table and the retry
// queue. No repository, so only store-free packet paths run here.
func newDispatchTestServer(t *testing.T) *Server {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to bind test socket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	s := &Server{
		sessions: newSessionTable(),
		deferred: newWriteQueue(),
		conn:     conn,
	}
	s.retry = newRetryDispatcher(config.ServerConfig{}, s.sessions, s.transmit, nil)
	s.handlers = s.buildHandlers()
	return s
}

// dispatchSession registers a live session bound to the given peer
// address and returns its row.
func dispatchSession(s *Server, addr *net.UDPAddr) *models.Session {
	row := &models.Session{
		ID:           1,
		SessionID:    "0f83a29c51d6e7b40f83a29c51d6e7b4",
		SessionKey:   "4d2f8a1b6c3e9d704d2f8a1b6c3e9d704d2f8a1b6c3e9d704d2f8a1b6c3e9d70",
		LastActiveAt: time.Now().Unix(),
	}
	s.sessions.Put(row, addr)
	return row
}

// pendingPackets snapshots the packets sitting in the retry queue.
func pendingPackets(d *retryDispatcher) []*protocol.Packet {
	d.mu.Lock()
	defer d.mu.Unlock()
	packets := make([]*protocol.Packet, 0, len(d.tasks))
	for _, task := range d.tasks {
		packets = append(packets, task.packet)
	}
	return packets
}

func mustPacket(t *testing.T, ptype string, data any) *protocol.Packet {
	t.Helper()
	p, err := protocol.NewPacket(ptype, data)
	if err != nil {
		t.Fatalf("Failed to build %s packet: %v", ptype, err)
	}
	return p
}

func errorMessage(t *testing.T, p *protocol.Packet) string {
	t.Helper()
	if p == nil {
		t.Fatal("Expected an error packet, got nil")
	}
	if p.Type != protocol.PacketError {
		t.Fatalf("Expected ERROR packet, got %s", p.Type)
	}
	var data protocol.ErrorData
	if err := p.DecodeData(&data); err != nil {
		t.Fatalf("Failed to decode error data: %v", err)
	}
	return data.Message
}

func TestDispatchUnknownPacketType(t *testing.T) {
	s := newDispatchTestServer(t)
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50001}
	row := dispatchSession(s, addr)

	s.dispatch(context.Background(), row, addr, mustPacket(t, "TELEPORT", nil))

	pending := pendingPackets(s.retry)
	if len(pending) != 1 {
		t.Fatalf("Expected 1 queued packet, got %d", len(pending))
	}
	if got := errorMessage(t, pending[0]); got != "Unknown packet type: TELEPORT" {
		t.Errorf("Expected unknown type error, got %q", got)
	}
}

func TestDispatchAuthGate(t *testing.T) {
	tests := []struct {
		packetType string
		want       string
	}{
		{protocol.PacketLogout, "You are not logged in."},
		{protocol.PacketCreateRoom, "Authentication required."},
		{protocol.PacketJoinRoom, "Authentication required."},
		{protocol.PacketLeaveRoom, "Authentication required."},
		{protocol.PacketMessage, "Authentication required."},
		{protocol.PacketAIMessage, "Authentication required."},
		{protocol.PacketListMessages, "Authentication required."},
		{protocol.PacketListMembers, "Authentication required."},
	}
	for _, tt := range tests {
		t.Run(tt.packetType, func(t *testing.T) {
			s := newDispatchTestServer(t)
			addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50002}
			row := dispatchSession(s, addr)

			s.dispatch(context.Background(), row, addr, mustPacket(t, tt.packetType, nil))

			pending := pendingPackets(s.retry)
			if len(pending) != 1 {
				t.Fatalf("Expected 1 queued packet, got %d", len(pending))
			}
			if got := errorMessage(t, pending[0]); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDispatchHello(t *testing.T) {
	s := newDispatchTestServer(t)
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50003}
	row := dispatchSession(s, addr)

	s.dispatch(context.Background(), row, addr, mustPacket(t, protocol.PacketHello, nil))

	pending := pendingPackets(s.retry)
	if len(pending) != 1 {
		t.Fatalf("Expected 1 queued packet, got %d", len(pending))
	}
	if pending[0].Type != protocol.PacketHello {
		t.Errorf("Expected HELLO reply, got %s", pending[0].Type)
	}
	if pending[0].Message != "Welcome to UDPChat-AI." {
		t.Errorf("Expected greeting, got %q", pending[0].Message)
	}
	if pending[0].MsgID == "" {
		t.Error("Expected the reply to carry a msg_id")
	}
}

func TestDispatchAckRetiresDelivery(t *testing.T) {
	s := newDispatchTestServer(t)
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50004}
	row := dispatchSession(s, addr)

	s.dispatch(context.Background(), row, addr, mustPacket(t, protocol.PacketHello, nil))
	pending := pendingPackets(s.retry)
	if len(pending) != 1 {
		t.Fatalf("Expected 1 queued packet, got %d", len(pending))
	}

	ack := mustPacket(t, protocol.PacketAck, protocol.AckData{MsgID: pending[0].MsgID})
	s.dispatch(context.Background(), row, addr, ack)

	if got := s.retry.Len(); got != 0 {
		t.Errorf("Expected empty retry queue after ack, got %d", got)
	}
}

func TestDispatchHandlerErrorBecomesTransportError(t *testing.T) {
	s := newDispatchTestServer(t)

	// The peer socket stands in for the client so the plaintext error
	// can be observed on the wire.
	peer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to bind peer socket: %v", err)
	}
	defer peer.Close()
	addr := peer.LocalAddr().(*net.UDPAddr)
	row := dispatchSession(s, addr)

	// LOGIN with a data field that cannot decode into its shape.
	broken := &protocol.Packet{
		Type: protocol.PacketLogin,
		Data: json.RawMessage(`"not-an-object"`),
	}
	s.dispatch(context.Background(), row, addr, broken)

	if got := s.retry.Len(); got != 0 {
		t.Errorf("Expected nothing queued for a failed handler, got %d", got)
	}

	if err := peer.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set deadline: %v", err)
	}
	buf := make([]byte, 4096)
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("Expected a transport error datagram: %v", err)
	}
	var serr protocol.ServerError
	if err := json.Unmarshal(buf[:n], &serr); err != nil {
		t.Fatalf("Failed to parse transport error: %v", err)
	}
	if serr.Type != protocol.TypeServerError {
		t.Errorf("Expected SERVER_ERROR, got %s", serr.Type)
	}
	if !strings.HasPrefix(serr.Message, "Packet processing failure:") {
		t.Errorf("Expected processing failure message, got %q", serr.Message)
	}
}

func TestDispatchStatusWithoutUser(t *testing.T) {
	s := newDispatchTestServer(t)
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50005}
	row := dispatchSession(s, addr)

	s.dispatch(context.Background(), row, addr, mustPacket(t, protocol.PacketStatus, nil))

	pending := pendingPackets(s.retry)
	if len(pending) != 1 {
		t.Fatalf("Expected 1 queued packet, got %d", len(pending))
	}
	if pending[0].Type != protocol.PacketStatus {
		t.Fatalf("Expected STATUS reply, got %s", pending[0].Type)
	}
	var data protocol.StatusData
	if err := pending[0].DecodeData(&data); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if data.SessionID != row.SessionID {
		t.Errorf("Expected session id %q, got %q", row.SessionID, data.SessionID)
	}
	user, ok := data.User.(map[string]any)
	if !ok {
		t.Fatalf("Expected an object user field, got %T", data.User)
	}
	if len(user) != 0 {
		t.Errorf("Expected an empty user object, got %v", user)
	}
}
