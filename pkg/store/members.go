package store

import (
	"context"

	"github.com/agonych/udp-chat/pkg/store/models"
)

// ============================================
// MEMBERSHIP OPERATIONS
// ============================================

// AddMember inserts a room membership. Duplicate joins are reported as
// ErrDuplicateMember via the unique (room, user) constraint.
func (s *GORMStore) AddMember(ctx context.Context, member *models.Member) error {
	return create(s.db, ctx, member, models.ErrDuplicateMember)
}

// RemoveMember deletes the membership linking the user to the room.
func (s *GORMStore) RemoveMember(ctx context.Context, roomPK, userPK uint) error {
	result := s.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomPK, userPK).
		Delete(&models.Member{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotAMember
	}
	return nil
}

// MemberOf returns the membership row for the user in the room, or
// ErrNotAMember.
func (s *GORMStore) MemberOf(ctx context.Context, roomPK, userPK uint) (*models.Member, error) {
	var member models.Member
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomPK, userPK).
		First(&member).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrNotAMember)
	}
	return &member, nil
}

// RoomMembers returns the room's memberships with user rows preloaded,
// ordered by user name.
func (s *GORMStore) RoomMembers(ctx context.Context, roomPK uint) ([]*models.Member, error) {
	var members []*models.Member
	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = members.user_id").
		Where("members.room_id = ?", roomPK).
		Order("users.name").
		Preload("User").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// RoomMemberPKs returns the user primary keys of everyone in the room.
func (s *GORMStore) RoomMemberPKs(ctx context.Context, roomPK uint) ([]uint, error) {
	var pks []uint
	err := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("room_id = ?", roomPK).
		Pluck("user_id", &pks).Error
	if err != nil {
		return nil, err
	}
	return pks, nil
}

// CountMembers returns the number of members in the room.
func (s *GORMStore) CountMembers(ctx context.Context, roomPK uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("room_id = ?", roomPK).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
