package models

import (
	"fmt"
	"time"
)

// MaxMessageChars caps a single message body.
const MaxMessageChars = 2000

// Message belongs to a Connection. Appending one bumps the parent's
// InteractionCount by exactly one.
type Message struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ConnectionID    string    `gorm:"type:varchar(140);not null;index;uniqueIndex:idx_messages_client_id" json:"connection_id"`
	SenderID        string    `gorm:"type:varchar(64);not null" json:"sender_id"`
	Text            string    `gorm:"type:text;not null" json:"text"`
	ClientMessageID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_messages_client_id" json:"client_message_id"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// Validate checks a message loaded from the store.
func (m *Message) Validate() error {
	if m.ID == "" || m.ConnectionID == "" {
		return fmt.Errorf("missing id")
	}
	if m.SenderID == "" {
		return fmt.Errorf("missing sender")
	}
	return nil
}
