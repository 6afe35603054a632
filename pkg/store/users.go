package store

import (
	"context"

	"github.com/agonych/udp-chat/pkg/store/models"
)

// ============================================
// USER OPERATIONS
// ============================================

// UserByEmail looks a user up by email address (stored lowercase).
func (s *GORMStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "email", email, models.ErrUserNotFound)
}

// UserByPK looks a user up by surrogate primary key.
func (s *GORMStore) UserByPK(ctx context.Context, pk uint) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "id", pk, models.ErrUserNotFound)
}

// CreateUser inserts a new user. The caller mints UserID; Email must
// already be normalised to lowercase.
func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) error {
	return create(s.db, ctx, user, models.ErrDuplicateUser)
}

// SetUserPassword stores the password hash for the account with the
// given email. An empty hash clears the password, returning the account
// to email-only login.
func (s *GORMStore) SetUserPassword(ctx context.Context, email, passwordHash string) error {
	return updateByField[models.User](s.db, ctx, "email", email,
		map[string]any{"password": passwordHash}, models.ErrUserNotFound)
}

// TouchUser updates the user's last activity timestamp.
func (s *GORMStore) TouchUser(ctx context.Context, pk uint, at int64) error {
	return updateByField[models.User](s.db, ctx, "id", pk,
		map[string]any{"last_active_at": at}, models.ErrUserNotFound)
}

// ListUsers returns all users ordered by email.
func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := s.db.WithContext(ctx).Order("email").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
