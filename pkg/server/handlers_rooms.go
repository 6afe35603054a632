package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/agonych/udp-chat/internal/logger"
	"github.com/agonych/udp-chat/pkg/crypto"
	"github.com/agonych/udp-chat/pkg/protocol"
	"github.com/agonych/udp-chat/pkg/store/models"
)

// handleListRooms answers with the public room listing, most recently
// active first.
func (s *Server) handleListRooms(ctx context.Context, req *Request) (*protocol.Packet, error) {
	rooms, err := s.store.ListPublicRooms(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.NewPacket(protocol.PacketRoomList, roomInfos(rooms))
}

// handleCreateRoom creates a public room with the caller as its admin
// member and pushes the refreshed listing to everyone.
func (s *Server) handleCreateRoom(ctx context.Context, req *Request) (*protocol.Packet, error) {
	var data protocol.CreateRoomData
	if err := req.DecodeData(&data); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(data.Name)
	if name == "" {
		return protocol.ErrorPacket("Room name is required."), nil
	}

	if _, err := s.store.RoomByName(ctx, name); err == nil {
		return protocol.ErrorPacket("Room with that name already exists."), nil
	} else if !errors.Is(err, models.ErrRoomNotFound) {
		return nil, err
	}

	user, err := s.sessionUser(ctx, req.Session)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	room := &models.Room{
		RoomID:       crypto.NewID(),
		Name:         name,
		LastActiveAt: now,
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, models.ErrDuplicateRoom) {
			return protocol.ErrorPacket("Room with that name already exists."), nil
		}
		return nil, err
	}
	if err := s.store.AddMember(ctx, &models.Member{
		RoomID:   room.ID,
		UserID:   user.ID,
		IsAdmin:  true,
		JoinedAt: now,
	}); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordRoomCreated()
	}
	logger.Info("Room created",
		logger.RoomID(room.RoomID),
		logger.RoomName(name),
		logger.UserID(user.UserID))

	s.broadcastRoomList(ctx)

	return protocol.NewPacket(protocol.PacketRoomCreated, protocol.RoomRef{
		RoomID: room.RoomID,
		Name:   room.Name,
	})
}

// handleJoinRoom adds the caller to a room and announces the new member
// to everyone in it, the joiner included. Joining a room twice is a
// silent no-op.
func (s *Server) handleJoinRoom(ctx context.Context, req *Request) (*protocol.Packet, error) {
	room, errPacket, err := s.roomFromRequest(ctx, req)
	if room == nil {
		return errPacket, err
	}

	user, err := s.sessionUser(ctx, req.Session)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.MemberOf(ctx, room.ID, user.ID); err == nil {
		return nil, nil
	} else if !errors.Is(err, models.ErrNotAMember) {
		return nil, err
	}

	now := time.Now().Unix()
	if err := s.store.AddMember(ctx, &models.Member{
		RoomID:   room.ID,
		UserID:   user.ID,
		JoinedAt: now,
	}); err != nil {
		if errors.Is(err, models.ErrDuplicateMember) {
			return nil, nil
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordRoomJoin()
	}
	logger.Info("Member joined room",
		logger.RoomID(room.RoomID),
		logger.UserID(user.UserID))

	joined, err := protocol.NewPacket(protocol.PacketMemberJoined, protocol.MemberJoinedData{
		RoomID: room.RoomID,
		Member: protocol.MemberInfo{
			UserID:   user.UserID,
			Name:     user.Name,
			IsAdmin:  user.IsAdmin,
			JoinedAt: &now,
		},
	})
	if err != nil {
		return nil, err
	}
	s.broadcastToRoom(ctx, room, joined)

	return protocol.NewPacket(protocol.PacketJoinedRoom, protocol.RoomRef{
		RoomID: room.RoomID,
		Name:   room.Name,
	})
}

// handleLeaveRoom removes the caller's membership. Remaining members
// hear MEMBER_LEFT; when the last member leaves, the room is destroyed
// and everyone gets a fresh room listing. The leaver's other sessions
// are told with ROOM_LEFT so their clients can drop the room view.
func (s *Server) handleLeaveRoom(ctx context.Context, req *Request) (*protocol.Packet, error) {
	room, errPacket, err := s.roomFromRequest(ctx, req)
	if room == nil {
		return errPacket, err
	}

	user, err := s.sessionUser(ctx, req.Session)
	if err != nil {
		return nil, err
	}

	if err := s.store.RemoveMember(ctx, room.ID, user.ID); err != nil {
		if errors.Is(err, models.ErrNotAMember) {
			return protocol.ErrorPacket("You are not a member of this room."), nil
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordRoomLeave()
	}
	logger.Info("Member left room",
		logger.RoomID(room.RoomID),
		logger.UserID(user.UserID))

	remaining, err := s.store.CountMembers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		left, err := protocol.NewPacket(protocol.PacketMemberLeft, protocol.MemberLeftData{
			RoomID:   room.RoomID,
			MemberID: user.UserID,
		})
		if err != nil {
			return nil, err
		}
		s.broadcastToRoom(ctx, room, left)
	} else {
		if err := s.store.DeleteRoom(ctx, room.ID); err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.RecordRoomDeleted()
		}
		logger.Info("Room destroyed, last member left",
			logger.RoomID(room.RoomID),
			logger.RoomName(room.Name))
		s.broadcastRoomList(ctx)
	}

	s.notifySiblingSessions(ctx, req.Session, user, room)

	return protocol.NewPacket(protocol.PacketLeftRoom, protocol.RoomRef{
		RoomID: room.RoomID,
		Name:   room.Name,
	})
}

// notifySiblingSessions sends ROOM_LEFT to the user's other live
// sessions after a leave, so every client of the same account converges.
func (s *Server) notifySiblingSessions(ctx context.Context, current *models.Session, user *models.User, room *models.Room) {
	sessionIDs, err := s.store.SessionIDsForUsers(ctx, []uint{user.ID})
	if err != nil {
		logger.Warn("Failed to resolve sibling sessions",
			logger.UserID(user.UserID),
			logger.Err(err))
		return
	}
	others := sessionIDs[:0]
	for _, id := range sessionIDs {
		if id != current.SessionID {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return
	}
	packet, err := protocol.NewPacket(protocol.PacketRoomLeft, protocol.RoomRef{
		RoomID: room.RoomID,
		Name:   room.Name,
	})
	if err != nil {
		return
	}
	s.Broadcast(packet, others...)
}

// roomFromRequest resolves the room named by the request data. When it
// returns a nil room, either errPacket (a sealed application error) or
// err (a transport failure) is set.
func (s *Server) roomFromRequest(ctx context.Context, req *Request) (room *models.Room, errPacket *protocol.Packet, err error) {
	var data protocol.RoomRequestData
	if err := req.DecodeData(&data); err != nil {
		return nil, nil, err
	}
	roomID := strings.TrimSpace(data.RoomID)
	if roomID == "" {
		return nil, protocol.ErrorPacket("Room ID is required."), nil
	}
	room, err = s.store.RoomByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			return nil, protocol.ErrorPacket("Room not found."), nil
		}
		return nil, nil, err
	}
	return room, nil, nil
}
