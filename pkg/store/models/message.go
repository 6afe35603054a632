package models

// Message is a chat message persisted to a room's history.
// IsAnnouncement marks AI-generated messages so clients can render them
// differently from ones the user typed.
type Message struct {
	ID             uint   `gorm:"primaryKey" json:"-"`
	RoomID         uint   `gorm:"index;not null" json:"-"`
	UserID         uint   `gorm:"index;not null" json:"-"`
	Content        string `gorm:"not null" json:"content"`
	IsAnnouncement bool   `gorm:"default:false" json:"is_announcement"`
	CreatedAt      int64  `gorm:"autoCreateTime" json:"created_at"`

	Room *Room `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// TableName returns the table name for Message.
func (Message) TableName() string {
	return "messages"
}
