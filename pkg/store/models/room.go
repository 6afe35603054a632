package models

// Room represents a chat room.
//
// Rooms created over the wire are public. LastActiveAt is bumped on every
// message so room listings and the WELCOME "last room" lookup can order
// by recent activity. A room is deleted when its last member leaves.
type Room struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	RoomID       string `gorm:"uniqueIndex;not null;size:32" json:"room_id"`
	Name         string `gorm:"uniqueIndex;not null;size:255" json:"name"`
	IsPrivate    bool   `gorm:"default:false" json:"is_private"`
	CreatedAt    int64  `gorm:"autoCreateTime" json:"created_at"`
	LastActiveAt int64  `gorm:"not null;default:0" json:"last_active_at"`
}

// TableName returns the table name for Room.
func (Room) TableName() string {
	return "rooms"
}
