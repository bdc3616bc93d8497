package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/repository"
	utils "agentdesk-backend/shared/utils/auth"
	"agentdesk-backend/shared/utils/query"
)

//go:embed seed_agents.yaml
var defaultSeed []byte

type SeedOrganization struct {
	Name         string `yaml:"name"`
	Slug         string `yaml:"slug"`
	ContactEmail string `yaml:"contact_email"`
}

// AgentPreset is a platform-wide agent created by the seeder.
type AgentPreset struct {
	Name            string                 `yaml:"name"`
	Description     string                 `yaml:"description"`
	Prompt          string                 `yaml:"prompt"`
	Tone            string                 `yaml:"tone"`
	LeadStrategy    string                 `yaml:"lead_strategy"`
	WelcomeMessage  string                 `yaml:"welcome_message"`
	PreQuoteMessage string                 `yaml:"pre_quote_message"`
	TargetRole      string                 `yaml:"target_role"`
	IsDefault       bool                   `yaml:"is_default"`
	Config          map[string]interface{} `yaml:"config"`
}

type SeedData struct {
	Organization SeedOrganization `yaml:"organization"`
	Agents       []AgentPreset    `yaml:"agents"`
}

// SeedResult counts what a run created.
type SeedResult struct {
	OrganizationCreated bool
	AdminCreated        bool
	AgentsCreated       int
}

// DefaultSeedData returns the embedded platform organization and agent presets.
func DefaultSeedData() (*SeedData, error) {
	return ParseSeedData(defaultSeed)
}

func ParseSeedData(raw []byte) (*SeedData, error) {
	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("invalid seed data: %w", err)
	}

	if strings.TrimSpace(data.Organization.Name) == "" || strings.TrimSpace(data.Organization.Slug) == "" {
		return nil, errors.New("invalid seed data: organization name and slug are required")
	}
	seen := map[string]bool{}
	for i, preset := range data.Agents {
		name := strings.TrimSpace(preset.Name)
		if name == "" {
			return nil, fmt.Errorf("invalid seed data: agent %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("invalid seed data: duplicate agent %q", name)
		}
		seen[name] = true
		if preset.TargetRole == "" {
			data.Agents[i].TargetRole = models.TargetRoleBoth
		} else if !access.ValidTargetRole(preset.TargetRole) {
			return nil, fmt.Errorf("invalid seed data: agent %q has unknown target role %q", name, preset.TargetRole)
		}
	}
	return &data, nil
}

// Seeder creates the platform organization, the super admin and the global agents.
// Running it again only adds what is missing.
type Seeder struct {
	repos repository.Repositories
	log   *zap.Logger
}

func NewSeeder(repos repository.Repositories, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{repos: repos, log: log}
}

func (s *Seeder) Seed(ctx context.Context, data *SeedData, adminEmail, adminPassword string) (*SeedResult, error) {
	result := &SeedResult{}

	org, created, err := s.seedOrganization(ctx, data.Organization)
	if err != nil {
		return nil, err
	}
	result.OrganizationCreated = created

	if result.AdminCreated, err = s.seedAdmin(ctx, org, adminEmail, adminPassword); err != nil {
		return nil, err
	}

	if result.AgentsCreated, err = s.seedAgents(ctx, data.Agents); err != nil {
		return nil, err
	}

	s.log.Info("database seeding completed",
		zap.Bool("organization_created", result.OrganizationCreated),
		zap.Bool("admin_created", result.AdminCreated),
		zap.Int("agents_created", result.AgentsCreated),
	)
	return result, nil
}

func (s *Seeder) seedOrganization(ctx context.Context, seed SeedOrganization) (*models.Organization, bool, error) {
	org, err := s.repos.Organizations.GetBySlug(ctx, seed.Slug)
	if err == nil {
		return org, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	org = &models.Organization{
		Name:         seed.Name,
		Slug:         seed.Slug,
		Status:       models.StatusActive,
		ContactEmail: seed.ContactEmail,
	}
	if err := s.repos.Organizations.Create(ctx, org); err != nil {
		return nil, false, fmt.Errorf("create platform organization: %w", err)
	}
	s.log.Info("platform organization created", zap.String("slug", org.Slug))
	return org, true, nil
}

func (s *Seeder) seedAdmin(ctx context.Context, org *models.Organization, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, errors.New("super admin email and password are required")
	}

	_, err := s.repos.Users.GetByEmail(ctx, email)
	if err == nil {
		s.log.Info("super admin already exists", zap.String("email", email))
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}

	admin := &models.User{
		Email:          email,
		Password:       hashed,
		FirstName:      "Super",
		LastName:       "Admin",
		Role:           access.RoleAdmin,
		Status:         models.StatusActive,
		OrganizationID: &org.ID,
	}
	if err := s.repos.Users.Create(ctx, admin); err != nil {
		return false, fmt.Errorf("create super admin: %w", err)
	}
	s.log.Info("super admin created", zap.String("email", email))
	return true, nil
}

func (s *Seeder) seedAgents(ctx context.Context, presets []AgentPreset) (int, error) {
	globals := access.AgentFilter{IncludeGlobal: true}
	created := 0

	for _, preset := range presets {
		name := strings.TrimSpace(preset.Name)
		existing, _, err := s.repos.Agents.List(ctx, globals, query.FilterParams{Page: 1, Limit: 100, Search: name})
		if err != nil {
			return created, err
		}
		if hasAgentNamed(existing, name) {
			continue
		}

		agent := &models.Agent{
			Name:            name,
			Description:     preset.Description,
			Prompt:          strings.TrimSpace(preset.Prompt),
			Tone:            orDefault(preset.Tone, models.DefaultAgentTone),
			LeadStrategy:    orDefault(preset.LeadStrategy, models.DefaultAgentLeadStrategy),
			WelcomeMessage:  orDefault(preset.WelcomeMessage, models.DefaultAgentWelcomeMessage),
			PreQuoteMessage: preset.PreQuoteMessage,
			TargetRole:      preset.TargetRole,
			IsActive:        true,
		}
		if len(preset.Config) > 0 {
			raw, err := json.Marshal(preset.Config)
			if err != nil {
				return created, fmt.Errorf("encode config of agent %q: %w", name, err)
			}
			agent.Config = datatypes.JSON(raw)
		}

		if err := s.repos.Agents.Create(ctx, agent); err != nil {
			return created, fmt.Errorf("create agent %q: %w", name, err)
		}
		if preset.IsDefault {
			if err := s.repos.Agents.SetDefault(ctx, agent); err != nil {
				return created, fmt.Errorf("set default agent %q: %w", name, err)
			}
		}
		created++
		s.log.Info("global agent created", zap.String("name", name))
	}
	return created, nil
}

func hasAgentNamed(agents []models.Agent, name string) bool {
	for _, a := range agents {
		if a.OrganizationID == nil && strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
