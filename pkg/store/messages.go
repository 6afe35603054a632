package store

import (
	"context"

	"github.com/agonych/udp-chat/pkg/store/models"
)

// ============================================
// MESSAGE OPERATIONS
// ============================================

// CreateMessage appends a message to a room's history. GORM fills the
// primary key and creation timestamp on the passed struct; the caller
// reads them back for the broadcast payload.
func (s *GORMStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// LastMessages returns up to limit messages of a room, newest first,
// with sender rows preloaded. Callers that need chronological order
// reverse the slice.
func (s *GORMStore) LastMessages(ctx context.Context, roomPK uint, limit int) ([]*models.Message, error) {
	var messages []*models.Message
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomPK).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Preload("User").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
