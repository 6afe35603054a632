package store

import (
	"context"

	"github.com/agonych/udp-chat/pkg/store/models"
)

// ============================================
// NONCE OPERATIONS
// ============================================

// SeenNonce reports whether the session has already consumed the nonce.
func (s *GORMStore) SeenNonce(ctx context.Context, sessionPK uint, nonce string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Nonce{}).
		Where("session_id = ? AND nonce = ?", sessionPK, nonce).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RememberNonce records a nonce against the session. The unique
// constraint on the pair makes this the authoritative replay check:
// a concurrent duplicate loses the insert and gets ErrNonceSeen.
func (s *GORMStore) RememberNonce(ctx context.Context, sessionPK uint, nonce string) error {
	return create(s.db, ctx, &models.Nonce{SessionID: sessionPK, Nonce: nonce}, models.ErrNonceSeen)
}
