package models

// Member links a user to a room. The creator of a room joins as its
// admin; everyone else joins as a regular member.
type Member struct {
	ID       uint  `gorm:"primaryKey" json:"-"`
	RoomID   uint  `gorm:"uniqueIndex:idx_room_user;not null" json:"-"`
	UserID   uint  `gorm:"uniqueIndex:idx_room_user;not null" json:"-"`
	IsAdmin  bool  `gorm:"default:false" json:"is_admin"`
	JoinedAt int64 `gorm:"autoCreateTime" json:"joined_at"`

	Room *Room `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// TableName returns the table name for Member.
func (Member) TableName() string {
	return "members"
}
