package models

import (
	"time"

	"github.com/google/uuid"
)

type Shop struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationID uuid.UUID `json:"organization_id" gorm:"type:uuid;not null;uniqueIndex:idx_shop_org_slug"`
	Name           string    `json:"name" gorm:"size:200;not null"`
	Slug           string    `json:"slug" gorm:"size:100;not null;uniqueIndex:idx_shop_org_slug"`
	Address        string    `json:"address" gorm:"type:text"`
	Phone          string    `json:"phone" gorm:"size:30"`
	Email          string    `json:"email" gorm:"size:255"`
	IsActive       bool      `json:"is_active" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Organization *Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
}
