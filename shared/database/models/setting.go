package models

import (
	"time"

	"github.com/google/uuid"
)

// Setting holds per-user preferences, one row per user.
type Setting struct {
	ID                   uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID               uuid.UUID  `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	PreferredAgentID     *uuid.UUID `json:"preferred_agent_id" gorm:"type:uuid"`
	Language             string     `json:"language" gorm:"size:10;default:'en'"`
	Theme                string     `json:"theme" gorm:"size:20;default:'system'"`
	NotificationsEnabled bool       `json:"notifications_enabled" gorm:"not null"`
	VibrationEnabled     bool       `json:"vibration_enabled" gorm:"not null"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// DefaultSetting returns the preferences applied when a user has never saved any.
func DefaultSetting(userID uuid.UUID) Setting {
	return Setting{
		UserID:               userID,
		Language:             "en",
		Theme:                "system",
		NotificationsEnabled: true,
		VibrationEnabled:     true,
	}
}
