package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agonych/udp-chat/internal/logger"
	"github.com/agonych/udp-chat/internal/telemetry"
	"github.com/agonych/udp-chat/pkg/ai"
	"github.com/agonych/udp-chat/pkg/protocol"
	"github.com/agonych/udp-chat/pkg/store/models"
)

// handleMessage persists a chat message and fans it out to every member
// session. The author additionally gets MESSAGE_SENT as confirmation.
func (s *Server) handleMessage(ctx context.Context, req *Request) (*protocol.Packet, error) {
	var data protocol.MessageData
	if err := req.DecodeData(&data); err != nil {
		return nil, err
	}
	roomID := strings.TrimSpace(data.RoomID)
	content := strings.TrimSpace(data.Content)
	if roomID == "" || content == "" {
		return protocol.ErrorPacket("Room ID and content are required."), nil
	}

	room, err := s.store.RoomByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			return protocol.ErrorPacket("Room not found."), nil
		}
		return nil, err
	}

	user, err := s.sessionUser(ctx, req.Session)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.MemberOf(ctx, room.ID, user.ID); err != nil {
		if errors.Is(err, models.ErrNotAMember) {
			return protocol.ErrorPacket("You must join the room before sending messages."), nil
		}
		return nil, err
	}

	msg, err := s.appendMessage(ctx, room, user, content, false)
	if err != nil {
		return nil, err
	}

	event, err := messageEventPacket(room, user, msg)
	if err != nil {
		return nil, err
	}
	s.broadcastToRoom(ctx, room, event)

	if s.metrics != nil {
		s.metrics.RecordMessage(false)
	}

	return protocol.NewPacket(protocol.PacketMessageSent, protocol.MessageSentData{
		MessageID: msg.ID,
		RoomID:    room.RoomID,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
	})
}

// handleAIMessage asks the assistant for the next message in the room,
// speaking as the calling user, optionally polishing a draft the user
// supplied. The result is stored as an announcement under the caller's
// name and broadcast like a normal message; the caller gets no direct
// reply beyond the broadcast.
func (s *Server) handleAIMessage(ctx context.Context, req *Request) (*protocol.Packet, error) {
	var data protocol.RoomRequestData
	if err := req.DecodeData(&data); err != nil {
		return nil, err
	}
	roomID := strings.TrimSpace(data.RoomID)
	draft := strings.TrimSpace(data.Content)
	if roomID == "" {
		return protocol.ErrorPacket("Room ID is required."), nil
	}

	room, err := s.store.RoomByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			return protocol.ErrorPacket("Room not found."), nil
		}
		return nil, err
	}

	user, err := s.sessionUser(ctx, req.Session)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.MemberOf(ctx, room.ID, user.ID); err != nil {
		if errors.Is(err, models.ErrNotAMember) {
			return protocol.ErrorPacket("You must join the room to request AI messages."), nil
		}
		return nil, err
	}

	if s.assistant == nil {
		return protocol.ErrorPacket("Invalid AI mode configured."), nil
	}

	history, err := s.roomTurns(ctx, room)
	if err != nil {
		return nil, err
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()
	aiCtx, span := telemetry.StartAISpan(aiCtx, s.aiMode, s.aiModel)
	start := time.Now()
	text, err := s.assistant.Generate(aiCtx, history, user.Name, draft)
	span.End()

	if err != nil {
		telemetry.RecordError(ctx, err)
		if s.metrics != nil {
			s.metrics.RecordAIGeneration(s.aiMode, s.aiModel, time.Since(start), "generate")
		}
		logger.Warn("Assistant generation failed",
			logger.AIMode(s.aiMode),
			logger.AIModel(s.aiModel),
			logger.RoomID(room.RoomID),
			logger.Err(err))
		return protocol.ErrorPacket(fmt.Sprintf("AI generation failed: %v", err)), nil
	}
	if s.metrics != nil {
		s.metrics.RecordAIGeneration(s.aiMode, s.aiModel, time.Since(start), "")
	}

	msg, err := s.appendMessage(ctx, room, user, text, true)
	if err != nil {
		return nil, err
	}

	event, err := messageEventPacket(room, user, msg)
	if err != nil {
		return nil, err
	}
	s.broadcastToRoom(ctx, room, event)

	if s.metrics != nil {
		s.metrics.RecordMessage(true)
	}
	logger.Info("Assistant message broadcast",
		logger.RoomID(room.RoomID),
		logger.UserID(user.UserID),
		logger.ContentLen(len(text)))

	return nil, nil
}

// handleListMessages answers with up to the last hundred messages of
// the room, oldest first.
func (s *Server) handleListMessages(ctx context.Context, req *Request) (*protocol.Packet, error) {
	room, errPacket, err := s.roomFromRequest(ctx, req)
	if room == nil {
		return errPacket, err
	}

	messages, err := s.store.LastMessages(ctx, room.ID, historyLimit)
	if err != nil {
		return nil, err
	}

	entries := make([]protocol.HistoryEntry, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		entry := protocol.HistoryEntry{
			MessageID:      m.ID,
			Content:        m.Content,
			Timestamp:      m.CreatedAt,
			IsAnnouncement: m.IsAnnouncement,
		}
		if m.User != nil {
			entry.UserID = m.User.UserID
			entry.Name = m.User.Name
		}
		entries = append(entries, entry)
	}
	return protocol.NewPacket(protocol.PacketRoomHistory, entries)
}

// handleListMembers answers with the room's membership, ordered by
// name.
func (s *Server) handleListMembers(ctx context.Context, req *Request) (*protocol.Packet, error) {
	room, errPacket, err := s.roomFromRequest(ctx, req)
	if room == nil {
		return errPacket, err
	}

	members, err := s.store.RoomMembers(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	infos := make([]protocol.MemberInfo, 0, len(members))
	for _, member := range members {
		info := protocol.MemberInfo{IsAdmin: member.IsAdmin}
		if member.User != nil {
			info.UserID = member.User.UserID
			info.Name = member.User.Name
		}
		if member.JoinedAt != 0 {
			at := member.JoinedAt
			info.JoinedAt = &at
		}
		infos = append(infos, info)
	}
	return protocol.NewPacket(protocol.PacketRoomMembers, infos)
}

// historyLimit caps how much history LIST_MESSAGES returns and how much
// context the assistant sees.
const historyLimit = 100

// appendMessage persists a message and bumps the room's activity clock.
func (s *Server) appendMessage(ctx context.Context, room *models.Room, user *models.User, content string, announcement bool) (*models.Message, error) {
	msg := &models.Message{
		RoomID:         room.ID,
		UserID:         user.ID,
		Content:        content,
		IsAnnouncement: announcement,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.store.TouchRoom(ctx, room.ID, msg.CreatedAt); err != nil {
		return nil, err
	}
	return msg, nil
}

// roomTurns loads the assistant's conversation context: the room's
// recent history in chronological order.
func (s *Server) roomTurns(ctx context.Context, room *models.Room) ([]ai.Turn, error) {
	messages, err := s.store.LastMessages(ctx, room.ID, historyLimit)
	if err != nil {
		return nil, err
	}
	turns := make([]ai.Turn, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		turn := ai.Turn{Content: m.Content}
		if m.User != nil {
			turn.Sender = m.User.Name
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// messageEventPacket builds the MESSAGE broadcast for a stored message.
func messageEventPacket(room *models.Room, user *models.User, msg *models.Message) (*protocol.Packet, error) {
	return protocol.NewPacket(protocol.PacketMessage, protocol.MessageEvent{
		RoomID:    room.RoomID,
		MessageID: msg.ID,
		UserID:    user.UserID,
		Name:      user.Name,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
	})
}
