package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleSystem    = "system"

	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusFailed    = "failed"
)

type ChatMessage struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationID uuid.UUID      `json:"conversation_id" gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	AgentID        uuid.UUID      `json:"agent_id" gorm:"type:uuid;not null"`
	Role           string         `json:"role" gorm:"size:20;not null"`
	Content        string         `json:"content" gorm:"type:text;not null"`
	Status         string         `json:"status" gorm:"size:20;default:'sent'"`
	Metadata       datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at" gorm:"index"`
}

// ConversationSummary is the latest message of one conversation.
type ConversationSummary struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	AgentID        uuid.UUID `json:"agent_id"`
	LastMessage    string    `json:"last_message"`
	LastRole       string    `json:"last_role"`
	MessageCount   int64     `json:"message_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}
