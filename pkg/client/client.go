// Package client implements the client half of the UDP chat protocol:
// the SESSION_INIT handshake with server identity verification, sealed
// request/response exchange and automatic acknowledgement of
// server-delivered packets. It backs the probe and scenario CLI
// commands and the end-to-end tests.
package client

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/agonych/udp-chat/pkg/crypto"
	"github.com/agonych/udp-chat/pkg/keys"
	"github.com/agonych/udp-chat/pkg/protocol"
)

// TransportError is a plaintext SERVER_ERROR envelope received from the
// server.
type TransportError struct {
	Message string
}

func (e *TransportError) Error() string {
	return "server error: " + e.Message
}

// Option configures a Client before the handshake.
type Option func(*Client)

// WithPinnedFingerprint makes Dial fail unless the server presents the
// given key fingerprint (lowercase hex SHA-256 of the DER key).
func WithPinnedFingerprint(fp string) Option {
	return func(c *Client) { c.pinned = fp }
}

// WithHandshakeTimeout bounds the wait for the SESSION_INIT response.
// Default 5s.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) { c.handshakeTimeout = d }
}

// recvItem is one delivery from the receive goroutine: either an inner
// packet or a transport-level error.
type recvItem struct {
	packet *protocol.Packet
	err    error
}

// Client is an established encrypted session with the server.
type Client struct {
	conn *net.UDPConn

	sessionID   string
	sessionKey  []byte
	serverKey   *rsa.PublicKey
	fingerprint string

	pinned           string
	handshakeTimeout time.Duration

	items     chan recvItem
	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Dial connects to the server, performs the handshake and verifies the
// server's identity: the PSS signature over the session key must check
// out against the presented public key, and the advertised fingerprint
// must match that key (and the pinned value, when one is set).
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := &Client{
		handshakeTimeout: 5 * time.Second,
		items:            make(chan recvItem, 64),
		shutdown:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c.conn = conn

	if err := c.handshake(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.wg.Add(1)
	go c.recvLoop()

	return c, nil
}

// handshake sends SESSION_INIT with a fresh RSA-2048 key and validates
// the response.
func (c *Client) handshake(ctx context.Context) error {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("generate client key: %w", err)
	}
	pubDER, err := keys.MarshalPublicDER(&priv.PublicKey)
	if err != nil {
		return fmt.Errorf("encode client key: %w", err)
	}

	request, err := json.Marshal(protocol.SessionInitRequest{
		Type:      protocol.TypeSessionInit,
		ClientKey: base64.StdEncoding.EncodeToString(pubDER),
	})
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(request); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}

	deadline := time.Now().Add(c.handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	buf := make([]byte, 65535)
	n, err := c.conn.Read(buf)
	if err != nil {
		return fmt.Errorf("handshake response: %w", err)
	}

	var head protocol.EnvelopeHead
	if err := json.Unmarshal(buf[:n], &head); err != nil {
		return fmt.Errorf("parse handshake response: %w", err)
	}
	if head.Type == protocol.TypeServerError {
		var serr protocol.ServerError
		if err := json.Unmarshal(buf[:n], &serr); err != nil {
			return fmt.Errorf("parse handshake error: %w", err)
		}
		return &TransportError{Message: serr.Message}
	}
	if head.Type != protocol.TypeSessionInit {
		return fmt.Errorf("unexpected handshake response type %q", head.Type)
	}

	var resp protocol.SessionInitResponse
	if err := json.Unmarshal(buf[:n], &resp); err != nil {
		return fmt.Errorf("parse handshake response: %w", err)
	}

	wrapped, err := hex.DecodeString(resp.EncryptedKey)
	if err != nil {
		return fmt.Errorf("decode encrypted key: %w", err)
	}
	sessionKey, err := crypto.UnwrapKey(priv, wrapped)
	if err != nil {
		return fmt.Errorf("unwrap session key: %w", err)
	}

	serverDER, err := hex.DecodeString(resp.ServerPubkey)
	if err != nil {
		return fmt.Errorf("decode server key: %w", err)
	}
	serverKey, err := keys.ParsePublicDER(serverDER)
	if err != nil {
		return fmt.Errorf("parse server key: %w", err)
	}
	signature, err := hex.DecodeString(resp.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if err := crypto.Verify(serverKey, sessionKey, signature); err != nil {
		return fmt.Errorf("verify session key signature: %w", err)
	}

	fingerprint := keys.FingerprintDER(serverDER)
	if resp.Fingerprint != fingerprint {
		return fmt.Errorf("fingerprint mismatch: advertised %s, computed %s",
			resp.Fingerprint, fingerprint)
	}
	if c.pinned != "" && fingerprint != c.pinned {
		return fmt.Errorf("fingerprint mismatch: pinned %s, server %s",
			c.pinned, fingerprint)
	}

	c.sessionID = resp.SessionID
	c.sessionKey = sessionKey
	c.serverKey = serverKey
	c.fingerprint = fingerprint
	return nil
}

// SessionID returns the server-assigned session identifier.
func (c *Client) SessionID() string {
	return c.sessionID
}

// SessionKeyHex returns the session key as the server stores it, for
// session merging.
func (c *Client) SessionKeyHex() string {
	return hex.EncodeToString(c.sessionKey)
}

// Fingerprint returns the verified server key fingerprint.
func (c *Client) Fingerprint() string {
	return c.fingerprint
}

// SealPacket builds one SECURE_MSG datagram carrying the given inner
// packet, sealed with a fresh nonce. The caller can transmit it with
// SendDatagram, more than once to probe replay protection.
func (c *Client) SealPacket(ptype string, data any) ([]byte, error) {
	packet, err := protocol.NewPacket(ptype, data)
	if err != nil {
		return nil, err
	}
	plaintext, err := json.Marshal(packet)
	if err != nil {
		return nil, err
	}
	nonce, err := crypto.NewNonce()
	if err != nil {
		return nil, err
	}
	ciphertext, err := crypto.Seal(c.sessionKey, nonce, plaintext)
	if err != nil {
		return nil, err
	}
	return json.Marshal(protocol.SecureMessage{
		Type:       protocol.TypeSecureMsg,
		SessionID:  c.sessionID,
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(ciphertext),
	})
}

// SendDatagram writes a raw datagram to the server.
func (c *Client) SendDatagram(datagram []byte) error {
	_, err := c.conn.Write(datagram)
	return err
}

// Send seals and transmits one application packet.
func (c *Client) Send(ptype string, data any) error {
	datagram, err := c.SealPacket(ptype, data)
	if err != nil {
		return err
	}
	return c.SendDatagram(datagram)
}

// Recv returns the next packet from the server. Packets the server
// stamped with a msg_id have already been acknowledged by the receive
// goroutine. A plaintext SERVER_ERROR surfaces as *TransportError.
func (c *Client) Recv(ctx context.Context) (*protocol.Packet, error) {
	select {
	case item := <-c.items:
		return item.packet, item.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.shutdown:
		return nil, net.ErrClosed
	}
}

// WaitFor returns the next packet whose type is one of those given,
// discarding everything else. Interleaved pushes (room listings, member
// events) carry full state and are safe to skip.
func (c *Client) WaitFor(ctx context.Context, types ...string) (*protocol.Packet, error) {
	for {
		packet, err := c.Recv(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range types {
			if packet.Type == t {
				return packet, nil
			}
		}
	}
}

// Call sends a request and returns the next packet the server delivers.
// Broadcasts triggered by the request can arrive before the direct
// response; callers that may race one should use Send plus WaitFor
// instead.
func (c *Client) Call(ctx context.Context, ptype string, data any) (*protocol.Packet, error) {
	if err := c.Send(ptype, data); err != nil {
		return nil, err
	}
	return c.Recv(ctx)
}

// Close tears the session down. The server-side row lingers until the
// idle sweep collects it.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.shutdown)
		_ = c.conn.Close()
	})
	c.wg.Wait()
	return nil
}

// recvLoop reads datagrams, opens envelopes and delivers inner packets.
// Every packet carrying a msg_id is acknowledged immediately so the
// server's retry dispatcher can retire it.
func (c *Client) recvLoop() {
	defer c.wg.Done()

	buf := make([]byte, 65535)
	for {
		select {
		case <-c.shutdown:
			return
		default:
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return
		}
		n, err := c.conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-c.shutdown:
			default:
				c.deliver(recvItem{err: err})
			}
			return
		}

		item := c.decode(buf[:n])
		if item == nil {
			continue
		}
		c.deliver(*item)
	}
}

// decode turns one datagram into a recvItem, or nil for traffic that
// needs no delivery.
func (c *Client) decode(datagram []byte) *recvItem {
	var head protocol.EnvelopeHead
	if err := json.Unmarshal(datagram, &head); err != nil {
		return &recvItem{err: fmt.Errorf("parse datagram: %w", err)}
	}

	switch head.Type {
	case protocol.TypeServerError:
		var serr protocol.ServerError
		if err := json.Unmarshal(datagram, &serr); err != nil {
			return &recvItem{err: err}
		}
		return &recvItem{err: &TransportError{Message: serr.Message}}

	case protocol.TypeSecureMsg:
		var env protocol.SecureMessage
		if err := json.Unmarshal(datagram, &env); err != nil {
			return &recvItem{err: err}
		}
		nonce, err := hex.DecodeString(env.Nonce)
		if err != nil {
			return &recvItem{err: err}
		}
		ciphertext, err := hex.DecodeString(env.Ciphertext)
		if err != nil {
			return &recvItem{err: err}
		}
		plaintext, err := crypto.Open(c.sessionKey, nonce, ciphertext)
		if err != nil {
			return &recvItem{err: fmt.Errorf("open envelope: %w", err)}
		}
		var packet protocol.Packet
		if err := json.Unmarshal(plaintext, &packet); err != nil {
			return &recvItem{err: err}
		}
		if packet.MsgID != "" {
			_ = c.Send(protocol.PacketAck, protocol.AckData{MsgID: packet.MsgID})
		}
		return &recvItem{packet: &packet}

	default:
		// Stray handshake responses and unknown envelopes are dropped.
		return nil
	}
}

// deliver hands an item to Recv, dropping it if the session is closing.
func (c *Client) deliver(item recvItem) {
	select {
	case c.items <- item:
	case <-c.shutdown:
	}
}
