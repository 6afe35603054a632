// Package models defines the persistent entities of the chat server:
// users, transport sessions, the replay-protection nonce ledger, rooms,
// memberships and messages.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&Session{},
		&Nonce{},
		&Room{},
		&Member{},
		&Message{},
	}
}
