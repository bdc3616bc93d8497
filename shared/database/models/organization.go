package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

type Organization struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name         string    `json:"name" gorm:"size:200;not null"`
	Slug         string    `json:"slug" gorm:"size:100;uniqueIndex;not null"`
	Status       string    `json:"status" gorm:"size:20;default:'ACTIVE'"`
	ContactEmail string    `json:"contact_email" gorm:"size:255"`
	// WebhookURL overrides the platform chat webhook for this tenant.
	WebhookURL *string   `json:"webhook_url" gorm:"size:500"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
