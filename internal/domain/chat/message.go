package chat

import (
	"time"

	"github.com/google/uuid"
)

const (
	KindUser      = "user"
	KindAssistant = "assistant"
)

// ChatMessage is one user- or assistant-authored message. Rows are immutable
// after creation.
type ChatMessage struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_message_user_created,priority:1" json:"user_id"`

	Username string `gorm:"column:username;not null" json:"username"`
	Text     string `gorm:"column:text;type:text;not null" json:"text"`

	// user|assistant
	Kind string `gorm:"column:kind;not null;default:'user';index" json:"kind"`

	CreatedAt time.Time `gorm:"not null;default:now();index:idx_chat_message_user_created,priority:2" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }
