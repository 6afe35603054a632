// Package protocol defines the wire format spoken between the UDPChat
// server and its clients: the plaintext envelope types used for the
// handshake and transport errors, and the encrypted inner packets that
// carry the chat application traffic.
//
// Every datagram is a single UTF-8 JSON object. The outer object always
// has a "type" field; everything else is type-specific and lives at the
// top level of the object (there is no nested payload wrapper on the
// envelope). Application packets travel inside SECURE_MSG ciphertext and
// have the shape {"type": T, "data": ...} where data is an object or an
// array depending on T.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope types. These appear in plaintext on the wire.
const (
	// TypeSessionInit is the handshake request and response.
	TypeSessionInit = "SESSION_INIT"

	// TypeSecureMsg carries an encrypted application packet.
	TypeSecureMsg = "SECURE_MSG"

	// TypeServerError is a plaintext transport-layer error. It is the
	// only way the server talks to a peer it shares no key with.
	TypeServerError = "SERVER_ERROR"
)

// Inner packet types sent by clients.
const (
	PacketHello        = "HELLO"
	PacketLogin        = "LOGIN"
	PacketLogout       = "LOGOUT"
	PacketStatus       = "STATUS"
	PacketMergeSession = "MERGE_SESSION"
	PacketListRooms    = "LIST_ROOMS"
	PacketCreateRoom   = "CREATE_ROOM"
	PacketJoinRoom     = "JOIN_ROOM"
	PacketLeaveRoom    = "LEAVE_ROOM"
	PacketMessage      = "MESSAGE"
	PacketAIMessage    = "AI_MESSAGE"
	PacketListMessages = "LIST_MESSAGES"
	PacketListMembers  = "LIST_MEMBERS"
	PacketAck          = "ACK"
)

// Inner packet types sent by the server. PacketMessage doubles as the
// room broadcast type.
const (
	PacketError              = "ERROR"
	PacketWelcome            = "WELCOME"
	PacketPleaseLogin        = "PLEASE_LOGIN"
	PacketUnauthorised       = "UNAUTHORISED"
	PacketMergeSessionFailed = "MERGE_SESSION_FAILED"
	PacketRoomList           = "ROOM_LIST"
	PacketRoomCreated        = "ROOM_CREATED"
	PacketJoinedRoom         = "JOINED_ROOM"
	PacketLeftRoom           = "LEFT_ROOM"
	PacketRoomLeft           = "ROOM_LEFT"
	PacketMemberJoined       = "MEMBER_JOINED"
	PacketMemberLeft         = "MEMBER_LEFT"
	PacketMessageSent        = "MESSAGE_SENT"
	PacketRoomHistory        = "ROOM_HISTORY"
	PacketRoomMembers        = "ROOM_MEMBERS"
)

// EnvelopeHead is the minimal view of any incoming datagram, used to
// route by type before committing to a full parse.
type EnvelopeHead struct {
	Type string `json:"type"`
}

// SessionInitRequest is the client half of the handshake. ClientKey is
// the client's DER-encoded SubjectPublicKeyInfo, base64.
type SessionInitRequest struct {
	Type      string `json:"type"`
	ClientKey string `json:"client_key"`
}

// SessionInitResponse is the server half of the handshake. All binary
// fields are lowercase hex. Signature is an RSA-PSS signature over the
// raw AES session key bytes; Fingerprint is the SHA-256 of the DER
// SubjectPublicKeyInfo in ServerPubkey, letting the client pin the
// server identity out of band.
type SessionInitResponse struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	EncryptedKey string `json:"encrypted_key"`
	ServerPubkey string `json:"server_pubkey"`
	Signature    string `json:"signature"`
	Fingerprint  string `json:"fingerprint"`
}

// SecureMessage is the sealed transport envelope. Nonce is 12 bytes hex
// (24 chars); Ciphertext is AES-256-GCM output, tag included.
type SecureMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// ServerError is the plaintext transport error envelope.
type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Packet is an application packet, carried encrypted inside a
// SecureMessage. Data is an object for most types and an array for the
// list replies (ROOM_LIST, ROOM_HISTORY, ROOM_MEMBERS). MsgID is
// stamped by the retry dispatcher on every server-originated packet it
// delivers; clients echo it back in an ACK. Message is used only by the
// HELLO reply, which carries its greeting at the top level.
type Packet struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	MsgID   string          `json:"msg_id,omitempty"`
}

// NewPacket builds a Packet of the given type with data marshalled into
// place. A nil data produces a packet with no data field at all, which
// is how MERGE_SESSION_FAILED and the bare requests travel.
func NewPacket(ptype string, data any) (*Packet, error) {
	p := &Packet{Type: ptype}
	if data == nil {
		return p, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", ptype, err)
	}
	p.Data = raw
	return p, nil
}

// ErrorPacket builds the sealed application-level error packet.
func ErrorPacket(message string) *Packet {
	p, _ := NewPacket(PacketError, ErrorData{Message: message})
	return p
}

// DecodeData unmarshals the packet's data field into v. Packets with no
// data decode into the zero value.
func (p *Packet) DecodeData(v any) error {
	if len(p.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(p.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", p.Type, err)
	}
	return nil
}
