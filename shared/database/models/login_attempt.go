package models

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttempt is the login history shown to users and admins.
type LoginAttempt struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID      *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Email       string     `json:"email" gorm:"size:255;not null;index"`
	IPAddress   string     `json:"ip_address" gorm:"size:50;not null"`
	UserAgent   string     `json:"user_agent" gorm:"type:text"`
	Successful  bool       `json:"successful" gorm:"default:false"`
	FailureType string     `json:"failure_type" gorm:"size:100"` // wrong_password, user_not_found, account_inactive
	CreatedAt   time.Time  `json:"created_at"`
}
