package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/agonych/udp-chat/pkg/store/models"
)

// ============================================
// ROOM OPERATIONS
// ============================================

// CreateRoom inserts a new room. The caller mints RoomID.
func (s *GORMStore) CreateRoom(ctx context.Context, room *models.Room) error {
	return create(s.db, ctx, room, models.ErrDuplicateRoom)
}

// RoomByRoomID looks a room up by its hex identifier.
func (s *GORMStore) RoomByRoomID(ctx context.Context, roomID string) (*models.Room, error) {
	return getByField[models.Room](s.db, ctx, "room_id", roomID, models.ErrRoomNotFound)
}

// RoomByName looks a room up by its unique name.
func (s *GORMStore) RoomByName(ctx context.Context, name string) (*models.Room, error) {
	return getByField[models.Room](s.db, ctx, "name", name, models.ErrRoomNotFound)
}

// ListPublicRooms returns all public rooms, most recently active first.
func (s *GORMStore) ListPublicRooms(ctx context.Context) ([]*models.Room, error) {
	var rooms []*models.Room
	if err := s.db.WithContext(ctx).
		Where("is_private = ?", false).
		Order("last_active_at DESC").
		Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// TouchRoom updates the room's last activity timestamp.
func (s *GORMStore) TouchRoom(ctx context.Context, pk uint, at int64) error {
	return updateByField[models.Room](s.db, ctx, "id", pk,
		map[string]any{"last_active_at": at}, models.ErrRoomNotFound)
}

// DeleteRoom removes a room together with its memberships and message
// history. Called when the last member leaves.
func (s *GORMStore) DeleteRoom(ctx context.Context, pk uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", pk).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", pk).Delete(&models.Member{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", pk).Delete(&models.Room{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrRoomNotFound
		}
		return nil
	})
}

// LastRoomOfUser returns the most recently active room the user is a
// member of, for the WELCOME "pick up where you left off" hint.
// Returns ErrRoomNotFound if the user is in no rooms.
func (s *GORMStore) LastRoomOfUser(ctx context.Context, userPK uint) (*models.Room, error) {
	var room models.Room
	err := s.db.WithContext(ctx).
		Joins("JOIN members ON members.room_id = rooms.id").
		Where("members.user_id = ?", userPK).
		Order("rooms.last_active_at DESC").
		First(&room).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrRoomNotFound)
	}
	return &room, nil
}
