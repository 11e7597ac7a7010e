package model

import (
	"time"

	"github.com/google/uuid"
)

// Message is a chat message in a room. The json tags match the column names
// so realtime records decode straight into it.
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id" mapstructure:"id"`
	RoomID    uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_room_created" json:"room_id" mapstructure:"room_id"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null" json:"sender_id" mapstructure:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content" mapstructure:"content"`
	CreatedAt time.Time `gorm:"index:idx_messages_room_created" json:"created_at" mapstructure:"created_at"`
	UpdatedAt time.Time `json:"updated_at" mapstructure:"updated_at"`
}

func (Message) TableName() string { return "messages" }
