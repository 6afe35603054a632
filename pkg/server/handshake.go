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
	"github.com/agonych/udp-chat/pkg/keys"
	"github.com/agonych/udp-chat/pkg/protocol"
	"github.com/agonych/udp-chat/pkg/store/models"
)

// handleSessionInit performs the server half of the handshake: mint a
// session and an AES-256 key, wrap the key under the client's RSA key,
// sign the raw key bytes and answer in plaintext. There is no retry at
// this layer; a client that misses the response simply re-initiates,
// and the orphaned session expires with the sweep.
func (s *Server) handleSessionInit(ctx context.Context, datagram []byte, addr *net.UDPAddr) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanSessionInit)
	defer span.End()

	var req protocol.SessionInitRequest
	if err := json.Unmarshal(datagram, &req); err != nil {
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}
	if req.ClientKey == "" {
		s.sendServerError(addr, errMissingClientKey)
		return
	}

	clientPub, err := keys.ParseClientKey(req.ClientKey)
	if err != nil {
		telemetry.RecordError(ctx, err)
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}

	sessionID, err := crypto.NewSessionID()
	if err != nil {
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}
	sessionKey, err := crypto.NewSessionKey()
	if err != nil {
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}

	wrapped, err := crypto.WrapKey(clientPub, sessionKey)
	if err != nil {
		telemetry.RecordError(ctx, err)
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}
	signature, err := crypto.Sign(s.identity.Private, sessionKey)
	if err != nil {
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}

	row := &models.Session{
		SessionID:    sessionID,
		SessionKey:   hex.EncodeToString(sessionKey),
		LastActiveAt: time.Now().Unix(),
	}
	if err := s.store.CreateSession(ctx, row); err != nil {
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}
	s.sessions.Put(row, addr)

	resp := protocol.SessionInitResponse{
		Type:         protocol.TypeSessionInit,
		SessionID:    sessionID,
		EncryptedKey: hex.EncodeToString(wrapped),
		ServerPubkey: hex.EncodeToString(s.identity.PublicDER),
		Signature:    hex.EncodeToString(signature),
		Fingerprint:  s.identity.Fingerprint,
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		s.sendServerError(addr, fmt.Sprintf("Packet processing failure: %v", err))
		return
	}
	if _, err := s.conn.WriteToUDP(payload, addr); err != nil {
		logger.Warn("Failed to send handshake response",
			logger.ClientAddr(addr.String()),
			logger.Err(err))
		return
	}

	logger.Info("Session established",
		logger.SessionID(sessionID),
		logger.ClientAddr(addr.String()))
}
