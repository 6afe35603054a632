package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/agonych/udp-chat/internal/logger"
	"github.com/agonych/udp-chat/internal/telemetry"
	"github.com/agonych/udp-chat/pkg/crypto"
	"github.com/agonych/udp-chat/pkg/protocol"
	"github.com/agonych/udp-chat/pkg/store/models"
)

// handleSecureMessage unwraps one SECURE_MSG envelope and hands the
// inner packet to the dispatcher. The nonce is recorded before
// decryption is attempted, so a replayed datagram is rejected even when
// its ciphertext would not open.
func (s *Server) handleSecureMessage(ctx context.Context, datagram []byte, addr *net.UDPAddr) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanSecureMsg)
	defer span.End()

	var env protocol.SecureMessage
	if err := json.Unmarshal(datagram, &env); err != nil {
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}
	if env.SessionID == "" || env.Nonce == "" || env.Ciphertext == "" {
		s.sendServerError(addr, errIncompleteFormat)
		return
	}

	row, err := s.store.SessionByID(ctx, env.SessionID)
	if err != nil {
		s.sendServerError(addr, errSessionNotFound)
		return
	}

	seen, err := s.store.SeenNonce(ctx, row.ID, env.Nonce)
	if err != nil {
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}
	if seen {
		logger.Debug("Replayed nonce rejected",
			logger.SessionID(env.SessionID),
			logger.Nonce(env.Nonce))
		s.sendServerError(addr, errNonceReused)
		return
	}
	if err := s.store.RememberNonce(ctx, row.ID, env.Nonce); err != nil {
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}

	// The latest authentic packet pins the session's address; the
	// repository touch rides the deferred queue.
	s.sessions.Put(row, addr)
	sessionID := row.SessionID
	s.deferred.Push(func(ctx context.Context) {
		if err := s.store.TouchSession(ctx, sessionID, time.Now().Unix()); err != nil {
			logger.Warn("Failed to touch session",
				logger.SessionID(sessionID),
				logger.Err(err))
		}
	})

	plaintext, err := openEnvelope(row, env.Nonce, env.Ciphertext)
	if err != nil {
		telemetry.RecordError(ctx, err)
		s.sendServerError(addr, errDecryptFailed)
		return
	}

	var packet protocol.Packet
	if err := json.Unmarshal(plaintext, &packet); err != nil {
		s.sendServerError(addr, errDecryptFailed)
		return
	}

	s.dispatch(ctx, row, addr, &packet)
}

// openEnvelope decodes the hex fields and opens the GCM envelope with
// the session's key.
func openEnvelope(row *models.Session, nonceHex, ciphertextHex string) ([]byte, error) {
	key, err := row.KeyBytes()
	if err != nil {
		return nil, err
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return nil, err
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, err
	}
	return crypto.Open(key, nonce, ciphertext)
}

// transmit seals one packet under the session key with a fresh nonce
// and writes the SECURE_MSG envelope to the task's address. The nonce
// record rides the deferred queue because transmit runs on the retry
// goroutine as well as the receive goroutine.
func (s *Server) transmit(task *retryTask) error {
	key, err := task.session.KeyBytes()
	if err != nil {
		return fmt.Errorf("session key: %w", err)
	}
	nonce, err := crypto.NewNonce()
	if err != nil {
		return fmt.Errorf("mint nonce: %w", err)
	}

	sessionPK := task.session.ID
	nonceHex := hex.EncodeToString(nonce)
	s.deferred.Push(func(ctx context.Context) {
		if err := s.store.RememberNonce(ctx, sessionPK, nonceHex); err != nil {
			logger.Warn("Failed to record egress nonce",
				logger.SessionID(task.session.SessionID),
				logger.Err(err))
		}
	})

	plaintext, err := json.Marshal(task.packet)
	if err != nil {
		return fmt.Errorf("encode packet: %w", err)
	}
	ciphertext, err := crypto.Seal(key, nonce, plaintext)
	if err != nil {
		return fmt.Errorf("seal packet: %w", err)
	}

	payload, err := json.Marshal(protocol.SecureMessage{
		Type:       protocol.TypeSecureMsg,
		SessionID:  task.session.SessionID,
		Nonce:      nonceHex,
		Ciphertext: hex.EncodeToString(ciphertext),
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	if _, err := s.conn.WriteToUDP(payload, task.addr); err != nil {
		return fmt.Errorf("send to %s: %w", task.addr, err)
	}
	return nil
}
