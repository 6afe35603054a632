package models

// User represents a chat participant.
//
// Accounts are provisioned on first login: a LOGIN with an unknown email
// creates the user with the local part of the address as the display name
// and no password. Passwordless accounts authenticate with the email
// alone; a password can only be set through the management CLI, after
// which it is required. The hash format depends on the configured
// password hasher and is stored as an opaque string.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	UserID       string `gorm:"uniqueIndex;not null;size:32" json:"user_id"`
	Name         string `gorm:"not null;size:255" json:"name"`
	Email        string `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Password     string `gorm:"size:255" json:"-"`
	IsAdmin      bool   `gorm:"default:false" json:"is_admin"`
	CreatedAt    int64  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    int64  `gorm:"autoUpdateTime" json:"updated_at"`
	LastActiveAt int64  `gorm:"not null;default:0" json:"last_active_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// HasPassword reports whether the account requires a password to log in.
func (u *User) HasPassword() bool {
	return u.Password != ""
}
