package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TargetRoleUser  = "user"
	TargetRoleShop  = "shop"
	TargetRoleBoth  = "both"
	TargetRoleAdmin = "admin"
)

const (
	DefaultAgentTone           = "professional"
	DefaultAgentLeadStrategy   = "balanced"
	DefaultAgentWelcomeMessage = "Hello! How can I help you today?"
)

// Agent is a configurable chat persona. A nil OrganizationID makes it a platform-wide agent.
type Agent struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationID  *uuid.UUID     `json:"organization_id" gorm:"type:uuid;index"`
	Name            string         `json:"name" gorm:"size:200;not null"`
	Description     string         `json:"description" gorm:"type:text"`
	Prompt          string         `json:"prompt" gorm:"type:text"`
	Tone            string         `json:"tone" gorm:"size:30;default:'professional'"`
	LeadStrategy    string         `json:"lead_strategy" gorm:"size:30;default:'balanced'"`
	WelcomeMessage  string         `json:"welcome_message" gorm:"type:text"`
	PreQuoteMessage string         `json:"pre_quote_message" gorm:"type:text"`
	TargetRole      string         `json:"target_role" gorm:"size:20;default:'both';not null;index"`
	AvatarURL       string         `json:"avatar_url" gorm:"size:500"`
	Config          datatypes.JSON `json:"config" gorm:"type:jsonb"`
	IsDefault       bool           `json:"is_default" gorm:"default:false;not null"`
	IsActive        bool           `json:"is_active" gorm:"not null;index"`
	CreatedBy       *uuid.UUID     `json:"created_by" gorm:"type:uuid"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
