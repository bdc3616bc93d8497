// Package repository hides persistence behind small interfaces. The gorm
// implementations talk to Postgres; the memory ones back tests and local runs.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/utils/query"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type AgentRepository interface {
	List(ctx context.Context, filter access.AgentFilter, params query.FilterParams) ([]models.Agent, int64, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	// FindDefault returns the default agent passing filter, organization agents first.
	FindDefault(ctx context.Context, filter access.AgentFilter) (*models.Agent, error)
	// FindOldest returns the first created agent passing filter.
	FindOldest(ctx context.Context, filter access.AgentFilter) (*models.Agent, error)
	Create(ctx context.Context, agent *models.Agent) error
	Update(ctx context.Context, agent *models.Agent) error
	// SetDefault makes agent the only default within its organization scope.
	SetDefault(ctx context.Context, agent *models.Agent) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type OrganizationRepository interface {
	// List returns every organization, or only onlyID when it is set.
	List(ctx context.Context, params query.FilterParams, onlyID *uuid.UUID) ([]models.Organization, int64, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	Create(ctx context.Context, org *models.Organization) error
	Update(ctx context.Context, org *models.Organization) error
	// Deactivate marks the organization inactive together with its shops, agents and users.
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// ShopScope narrows shop listings. Zero value means every shop.
type ShopScope struct {
	OrganizationID *uuid.UUID
	ShopID         *uuid.UUID
}

type ShopRepository interface {
	List(ctx context.Context, scope ShopScope, params query.FilterParams) ([]models.Shop, int64, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	Create(ctx context.Context, shop *models.Shop) error
	Update(ctx context.Context, shop *models.Shop) error
	// Deactivate soft deletes the shop and detaches its users.
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// UserScope narrows user listings. Zero value means every user.
type UserScope struct {
	OrganizationID *uuid.UUID
	UserID         *uuid.UUID
}

type UserRepository interface {
	List(ctx context.Context, scope UserScope, params query.FilterParams) ([]models.User, int64, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type SettingRepository interface {
	// Get returns ErrNotFound when the user never saved settings.
	Get(ctx context.Context, userID uuid.UUID) (*models.Setting, error)
	Save(ctx context.Context, setting *models.Setting) error
}

type ChatRepository interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// History returns the last limit messages of a conversation in chronological order.
	// A limit of zero returns the whole conversation.
	History(ctx context.Context, userID, conversationID uuid.UUID, limit int) ([]models.ChatMessage, error)
	Conversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
	DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) (int64, error)
}

type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.LoginAttempt, error)
}

// Repositories bundles every repository a service may need.
type Repositories struct {
	Agents        AgentRepository
	Organizations OrganizationRepository
	Shops         ShopRepository
	Users         UserRepository
	Settings      SettingRepository
	Chat          ChatRepository
	LoginAttempts LoginAttemptRepository
}

// NewGorm builds Postgres backed repositories.
func NewGorm(db *gorm.DB) Repositories {
	return Repositories{
		Agents:        &gormAgents{db: db},
		Organizations: &gormOrganizations{db: db},
		Shops:         &gormShops{db: db},
		Users:         &gormUsers{db: db},
		Settings:      &gormSettings{db: db},
		Chat:          &gormChat{db: db},
		LoginAttempts: &gormLoginAttempts{db: db},
	}
}

// translate maps gorm errors onto the package sentinels.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func sortSummaries(summaries []models.ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
}
