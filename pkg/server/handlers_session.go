package server

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/agonych/udp-chat/internal/logger"
	"github.com/agonych/udp-chat/pkg/crypto"
	"github.com/agonych/udp-chat/pkg/protocol"
	"github.com/agonych/udp-chat/pkg/store/models"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// handleHello answers the connection probe. The greeting travels at the
// top level of the packet rather than in a data object.
func (s *Server) handleHello(ctx context.Context, req *Request) (*protocol.Packet, error) {
	return &protocol.Packet{
		Type:    protocol.PacketHello,
		Message: "Welcome to UDPChat-AI.",
	}, nil
}

// handleLogin authenticates a user by email, provisioning the account
// on first sight. Accounts without a password log in on the email
// alone; accounts with one are prompted and checked.
func (s *Server) handleLogin(ctx context.Context, req *Request) (*protocol.Packet, error) {
	var data protocol.LoginData
	if err := req.DecodeData(&data); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(data.Email))
	if !emailPattern.MatchString(email) {
		return protocol.ErrorPacket("Please provide a valid email address"), nil
	}

	user, err := s.store.UserByEmail(ctx, email)
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		user = &models.User{
			UserID:       crypto.NewID(),
			Name:         strings.SplitN(email, "@", 2)[0],
			Email:        email,
			LastActiveAt: time.Now().Unix(),
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			// Lost a provisioning race with the CLI; use the winner.
			if !errors.Is(err, models.ErrDuplicateUser) {
				return nil, err
			}
			if user, err = s.store.UserByEmail(ctx, email); err != nil {
				return nil, err
			}
		} else {
			logger.Info("Provisioned new user",
				logger.Email(email),
				logger.UserID(user.UserID))
		}
	case err != nil:
		return nil, err
	}

	if user.HasPassword() {
		if data.Password == "" {
			return protocol.NewPacket(protocol.PacketPleaseLogin, protocol.PleaseLoginData{
				Message: "Please type your password to continue",
				Email:   email,
			})
		}
		if !s.hasher.Verify(user.Password, data.Password) {
			logger.Warn("Rejected login with bad password",
				logger.Email(email),
				logger.SessionID(req.Session.SessionID))
			return protocol.NewPacket(protocol.PacketUnauthorised, protocol.ErrorData{
				Message: "Incorrect password",
			})
		}
	}

	if err := s.bindUser(ctx, req.Session, user); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordLogin()
	}
	logger.Info("User logged in",
		logger.Email(email),
		logger.UserID(user.UserID),
		logger.SessionID(req.Session.SessionID))

	return s.welcomePacket(ctx, user)
}

// handleLogout detaches the user from the session. The session itself
// survives; it still carries the transport key.
func (s *Server) handleLogout(ctx context.Context, req *Request) (*protocol.Packet, error) {
	if err := s.store.ClearSessionUser(ctx, req.Session.SessionID); err != nil {
		return nil, err
	}
	req.Session.UserID = nil
	req.Session.User = nil

	if s.metrics != nil {
		s.metrics.RecordLogout()
	}
	logger.Info("User logged out", logger.SessionID(req.Session.SessionID))

	return protocol.NewPacket(protocol.PacketStatus, protocol.StatusData{
		SessionID: req.Session.SessionID,
		User:      nil,
	})
}

// handleStatus reports the session's view of itself. Clients poll it as
// a keepalive. The user field is an empty object for a bare transport
// session.
func (s *Server) handleStatus(ctx context.Context, req *Request) (*protocol.Packet, error) {
	data := protocol.StatusData{
		SessionID: req.Session.SessionID,
		User:      struct{}{},
	}
	if req.Session.IsAuthenticated() {
		user, err := s.sessionUser(ctx, req.Session)
		if err != nil {
			return nil, err
		}
		info, err := s.userInfo(ctx, user)
		if err != nil {
			return nil, err
		}
		data.User = info
	}
	return protocol.NewPacket(protocol.PacketStatus, data)
}

// handleMergeSession carries an authenticated user over from an earlier
// session by proof of its key. Every failure answers the same bare
// MERGE_SESSION_FAILED; the reason is not leaked to the peer.
func (s *Server) handleMergeSession(ctx context.Context, req *Request) (*protocol.Packet, error) {
	failed := &protocol.Packet{Type: protocol.PacketMergeSessionFailed}

	var data protocol.MergeSessionData
	if err := req.DecodeData(&data); err != nil {
		return nil, err
	}
	oldID := strings.TrimSpace(data.OldSessionID)
	oldKey := strings.TrimSpace(data.OldSessionKey)
	if oldID == "" || oldKey == "" {
		return failed, nil
	}

	old, err := s.store.SessionByID(ctx, oldID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return failed, nil
		}
		return nil, err
	}
	if old.SessionKey == "" || old.SessionKey != oldKey {
		return failed, nil
	}
	if old.UserID == nil {
		return failed, nil
	}

	user, err := s.sessionUser(ctx, old)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return failed, nil
		}
		return nil, err
	}

	if err := s.bindUser(ctx, req.Session, user); err != nil {
		return nil, err
	}
	logger.Info("Session merged",
		logger.SessionID(req.Session.SessionID),
		"old_session_id", oldID,
		logger.UserID(user.UserID))

	return s.welcomePacket(ctx, user)
}

// handleAck clears the acknowledged packet from the retry queue. ACKs
// never get a response; one without a msg_id is ignored.
func (s *Server) handleAck(ctx context.Context, req *Request) (*protocol.Packet, error) {
	var data protocol.AckData
	if err := req.DecodeData(&data); err != nil {
		return nil, err
	}
	if data.MsgID == "" {
		return nil, nil
	}
	s.retry.Acknowledge(req.Session.SessionID, data.MsgID)
	return nil, nil
}

// bindUser attaches the user to the session, in the repository and on
// the live row the session table shares.
func (s *Server) bindUser(ctx context.Context, row *models.Session, user *models.User) error {
	now := time.Now().Unix()
	if err := s.store.BindSessionUser(ctx, row.SessionID, user.ID, now); err != nil {
		return err
	}
	if err := s.store.TouchUser(ctx, user.ID, now); err != nil {
		return err
	}
	row.UserID = &user.ID
	row.User = user
	return nil
}

// sessionUser returns the user bound to the session, using the
// preloaded row when present.
func (s *Server) sessionUser(ctx context.Context, row *models.Session) (*models.User, error) {
	if row.User != nil {
		return row.User, nil
	}
	if row.UserID == nil {
		return nil, models.ErrUserNotFound
	}
	return s.store.UserByPK(ctx, *row.UserID)
}

// userInfo builds the wire view of a user for WELCOME and STATUS,
// including the most recently active room they belong to.
func (s *Server) userInfo(ctx context.Context, user *models.User) (*protocol.UserInfo, error) {
	info := &protocol.UserInfo{
		Email:  user.Email,
		Name:   user.Name,
		UserID: user.UserID,
	}
	room, err := s.store.LastRoomOfUser(ctx, user.ID)
	switch {
	case err == nil:
		info.Room = &protocol.RoomRef{RoomID: room.RoomID, Name: room.Name}
	case errors.Is(err, models.ErrRoomNotFound):
		// No rooms yet; room stays null.
	default:
		return nil, err
	}
	return info, nil
}

// welcomePacket builds the WELCOME reply shared by LOGIN and
// MERGE_SESSION.
func (s *Server) welcomePacket(ctx context.Context, user *models.User) (*protocol.Packet, error) {
	info, err := s.userInfo(ctx, user)
	if err != nil {
		return nil, err
	}
	return protocol.NewPacket(protocol.PacketWelcome, protocol.WelcomeData{User: *info})
}
