package models

// Nonce records a GCM nonce consumed by a session, for replay protection.
// The (session, nonce) pair is unique; a second packet reusing a nonce is
// rejected before decryption. Rows are removed with their session.
type Nonce struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	SessionID uint   `gorm:"uniqueIndex:idx_session_nonce;not null" json:"-"`
	Nonce     string `gorm:"uniqueIndex:idx_session_nonce;not null;size:24" json:"nonce"`
	CreatedAt int64  `gorm:"autoCreateTime" json:"created_at"`

	Session *Session `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Nonce.
func (Nonce) TableName() string {
	return "nonces"
}
