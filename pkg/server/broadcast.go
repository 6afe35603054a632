package server

import (
	"context"

	"github.com/agonych/udp-chat/internal/logger"
	"github.com/agonych/udp-chat/internal/telemetry"
	"github.com/agonych/udp-chat/pkg/protocol"
	"github.com/agonych/udp-chat/pkg/store/models"
)

// Broadcast enqueues the packet for each target session. With no
// explicit targets it goes to every live session. Targets that are not
// live are skipped by the retry dispatcher's liveness check.
func (s *Server) Broadcast(packet *protocol.Packet, sessionIDs ...string) {
	targets := sessionIDs
	if len(targets) == 0 {
		targets = s.sessions.IDs()
	}
	for _, id := range targets {
		s.retry.Enqueue(id, packet)
	}
}

// broadcastToRoom fans a packet out to the sessions of every member of
// the room. Recipients are resolved through the repository, so a member
// with several live sessions hears the event on all of them.
func (s *Server) broadcastToRoom(ctx context.Context, room *models.Room, packet *protocol.Packet) {
	ctx, span := telemetry.StartBroadcastSpan(ctx, room.RoomID)
	defer span.End()

	memberPKs, err := s.store.RoomMemberPKs(ctx, room.ID)
	if err != nil {
		logger.Warn("Failed to resolve room members for broadcast",
			logger.RoomID(room.RoomID),
			logger.Err(err))
		return
	}
	sessionIDs, err := s.store.SessionIDsForUsers(ctx, memberPKs)
	if err != nil {
		logger.Warn("Failed to resolve member sessions for broadcast",
			logger.RoomID(room.RoomID),
			logger.Err(err))
		return
	}
	if len(sessionIDs) == 0 {
		return
	}
	s.Broadcast(packet, sessionIDs...)
}

// broadcastRoomList pushes a fresh public room listing to every live
// session. Sent when the set of rooms changes.
func (s *Server) broadcastRoomList(ctx context.Context) {
	rooms, err := s.store.ListPublicRooms(ctx)
	if err != nil {
		logger.Warn("Failed to list rooms for broadcast", logger.Err(err))
		return
	}
	packet, err := protocol.NewPacket(protocol.PacketRoomList, roomInfos(rooms))
	if err != nil {
		logger.Warn("Failed to encode room list", logger.Err(err))
		return
	}
	s.Broadcast(packet)
}

// roomInfos converts room rows to the ROOM_LIST wire entries. A zero
// last_active_at becomes null.
func roomInfos(rooms []*models.Room) []protocol.RoomInfo {
	infos := make([]protocol.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		info := protocol.RoomInfo{
			RoomID: room.RoomID,
			Name:   room.Name,
		}
		if room.LastActiveAt != 0 {
			at := room.LastActiveAt
			info.LastActiveAt = &at
		}
		infos = append(infos, info)
	}
	return infos
}
