package models

import "errors"

// Common errors for chat repository operations.
var (
	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")

	// Session errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session already exists")

	// Nonce errors
	ErrNonceSeen = errors.New("nonce already used")

	// Room errors
	ErrRoomNotFound  = errors.New("room not found")
	ErrDuplicateRoom = errors.New("room already exists")

	// Membership errors
	ErrNotAMember      = errors.New("user is not a member of the room")
	ErrDuplicateMember = errors.New("user is already a member of the room")

	// Message errors
	ErrMessageNotFound = errors.New("message not found")
)
