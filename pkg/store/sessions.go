package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/agonych/udp-chat/pkg/store/models"
)

// ============================================
// SESSION OPERATIONS
// ============================================

// CreateSession persists a freshly established session.
func (s *GORMStore) CreateSession(ctx context.Context, sess *models.Session) error {
	return create(s.db, ctx, sess, models.ErrDuplicateSession)
}

// SessionByID looks a session up by its hex identifier, with the bound
// user (if any) preloaded.
func (s *GORMStore) SessionByID(ctx context.Context, sessionID string) (*models.Session, error) {
	return getByField[models.Session](s.db, ctx, "session_id", sessionID, models.ErrSessionNotFound, "User")
}

// BindSessionUser attaches a user to the session, marking it active.
// Rebinding an already authenticated session is allowed; the previous
// binding is simply replaced.
func (s *GORMStore) BindSessionUser(ctx context.Context, sessionID string, userPK uint, at int64) error {
	return updateByField[models.Session](s.db, ctx, "session_id", sessionID,
		map[string]any{"user_id": userPK, "last_active_at": at}, models.ErrSessionNotFound)
}

// ClearSessionUser detaches the bound user, returning the session to the
// anonymous state. The session itself stays valid.
func (s *GORMStore) ClearSessionUser(ctx context.Context, sessionID string) error {
	return updateByField[models.Session](s.db, ctx, "session_id", sessionID,
		map[string]any{"user_id": nil}, models.ErrSessionNotFound)
}

// TouchSession updates the session's last activity timestamp.
func (s *GORMStore) TouchSession(ctx context.Context, sessionID string, at int64) error {
	return updateByField[models.Session](s.db, ctx, "session_id", sessionID,
		map[string]any{"last_active_at": at}, models.ErrSessionNotFound)
}

// PurgeIdleSessions removes sessions whose last activity predates the
// cutoff, along with their nonce ledger entries. Returns the number of
// sessions removed.
func (s *GORMStore) PurgeIdleSessions(ctx context.Context, cutoff int64) (int64, error) {
	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.Session{}).
			Where("last_active_at < ?", cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("session_id IN ?", ids).Delete(&models.Nonce{}).Error; err != nil {
			return err
		}

		result := tx.Where("id IN ?", ids).Delete(&models.Session{})
		if result.Error != nil {
			return result.Error
		}
		purged = result.RowsAffected
		return nil
	})
	return purged, err
}

// SessionIDsForUsers returns the session identifiers currently bound to
// any of the given users. Used to fan broadcasts out to every live
// connection of a room's members.
func (s *GORMStore) SessionIDsForUsers(ctx context.Context, userPKs []uint) ([]string, error) {
	if len(userPKs) == 0 {
		return nil, nil
	}
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id IN ?", userPKs).
		Pluck("session_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
