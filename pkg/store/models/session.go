package models

import "encoding/hex"

// Session represents an established encrypted transport session.
//
// A session is minted during the SESSION_INIT handshake and identified by
// a random 128-bit hex ID. The AES-256 session key is stored hex-encoded
// so the session survives a server restart: a SECURE_MSG for an unknown
// in-memory session is rehydrated from this row. UserID stays null until
// a LOGIN binds the session to an account.
type Session struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	SessionID    string `gorm:"uniqueIndex;not null;size:32" json:"session_id"`
	UserID       *uint  `gorm:"index" json:"-"`
	SessionKey   string `gorm:"not null;size:64" json:"-"`
	CreatedAt    int64  `gorm:"autoCreateTime" json:"created_at"`
	LastActiveAt int64  `gorm:"not null;default:0" json:"last_active_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName returns the table name for Session.
func (Session) TableName() string {
	return "sessions"
}

// IsAuthenticated reports whether a user is bound to the session.
func (s *Session) IsAuthenticated() bool {
	return s.UserID != nil
}

// KeyBytes decodes the hex-encoded AES session key.
func (s *Session) KeyBytes() ([]byte, error) {
	return hex.DecodeString(s.SessionKey)
}
