package model

import "time"

const (
	RoleUserMessage      = "user"
	RoleAssistantMessage = "assistant"
)

type ChatMessage struct {
	MessageID string    `gorm:"primaryKey;size:36" json:"message_id"`
	Username  string    `gorm:"size:64;not null;index:idx_message_user_chat" json:"username"`
	ChatID    string    `gorm:"size:36;not null;index:idx_message_user_chat" json:"chat_id"`
	Title     string    `gorm:"size:128;not null" json:"title"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

// Chat is a conversation assembled from its messages.
type Chat struct {
	ChatID   string        `json:"chat_id"`
	Title    string        `json:"title"`
	Messages []ChatMessage `json:"messages"`
}

func (c Chat) LastActivity() time.Time {
	if len(c.Messages) == 0 {
		return time.Time{}
	}
	return c.Messages[len(c.Messages)-1].Timestamp
}
