package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/repository"
	"agentdesk-backend/shared/storage"
	"agentdesk-backend/shared/utils/query"
)

var (
	agentTones          = []string{"professional", "friendly", "casual", "formal"}
	agentLeadStrategies = []string{"none", "soft", "balanced", "aggressive"}
)

// PreferredAgentCache is satisfied by cache.CacheManager and cache.MemoryCache.
type PreferredAgentCache interface {
	GetPreferredAgent(ctx context.Context, userID uuid.UUID) (*models.Agent, bool)
	SetPreferredAgent(ctx context.Context, userID uuid.UUID, agent *models.Agent) error
	InvalidatePreferredAgent(ctx context.Context, userID uuid.UUID) error
	InvalidateAllPreferredAgents(ctx context.Context) error
}

// AvatarStore is satisfied by storage.MinIOService and storage.MemoryStore.
type AvatarStore interface {
	PutAvatar(ctx context.Context, agentID uuid.UUID, ext string, file io.Reader, size int64, contentType string) (string, error)
	GetAvatar(ctx context.Context, agentID uuid.UUID) (*storage.Object, error)
}

// AvatarPolicy limits avatar uploads.
type AvatarPolicy struct {
	MaxSize     int64
	AllowedExts []string
}

// AgentInput carries create and partial update fields. Nil means unchanged.
type AgentInput struct {
	OrganizationID  *uuid.UUID      `json:"organization_id"`
	Name            *string         `json:"name"`
	Description     *string         `json:"description"`
	Prompt          *string         `json:"prompt"`
	Tone            *string         `json:"tone"`
	LeadStrategy    *string         `json:"lead_strategy"`
	WelcomeMessage  *string         `json:"welcome_message"`
	PreQuoteMessage *string         `json:"pre_quote_message"`
	TargetRole      *string         `json:"target_role"`
	Config          *datatypes.JSON `json:"config" swaggertype:"object"`
	IsDefault       *bool           `json:"is_default"`
	IsActive        *bool           `json:"is_active"`

	// ClearOrganization turns an organization agent into a global one. Admin only.
	ClearOrganization bool `json:"clear_organization"`
}

type AgentService struct {
	agents   repository.AgentRepository
	settings repository.SettingRepository
	cache    PreferredAgentCache
	avatars  AvatarStore
	policy   AvatarPolicy
	log      *zap.Logger
}

func NewAgentService(repos repository.Repositories, cache PreferredAgentCache, avatars AvatarStore, policy AvatarPolicy, log *zap.Logger) *AgentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AgentService{
		agents:   repos.Agents,
		settings: repos.Settings,
		cache:    cache,
		avatars:  avatars,
		policy:   policy,
		log:      log,
	}
}

// List returns the agents visible to p.
func (s *AgentService) List(ctx context.Context, p access.Principal, params query.FilterParams) ([]models.Agent, int64, error) {
	return s.agents.List(ctx, access.AgentFilterFor(p), params)
}

// Get returns one agent. Agents p cannot see are reported as not found.
func (s *AgentService) Get(ctx context.Context, p access.Principal, id uuid.UUID) (*models.Agent, error) {
	return s.getMatching(ctx, access.AgentFilterFor(p), id)
}

// GetUsable returns an agent p may chat with.
func (s *AgentService) GetUsable(ctx context.Context, p access.Principal, id uuid.UUID) (*models.Agent, error) {
	return s.getMatching(ctx, access.AgentFilterFor(p).Usable(), id)
}

func (s *AgentService) getMatching(ctx context.Context, filter access.AgentFilter, id uuid.UUID) (*models.Agent, error) {
	agent, err := s.agents.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !filter.Matches(agent) {
		return nil, ErrNotFound
	}
	return agent, nil
}

// Preferred resolves the agent a user chats with by default: the saved preference,
// then the organization default, then the oldest usable agent.
func (s *AgentService) Preferred(ctx context.Context, p access.Principal) (*models.Agent, error) {
	if agent, ok := s.cache.GetPreferredAgent(ctx, p.UserID); ok {
		return agent, nil
	}

	agent, err := s.resolvePreferred(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetPreferredAgent(ctx, p.UserID, agent); err != nil {
		s.log.Warn("failed to cache preferred agent", zap.String("user_id", p.UserID.String()), zap.Error(err))
	}
	return agent, nil
}

func (s *AgentService) resolvePreferred(ctx context.Context, p access.Principal) (*models.Agent, error) {
	filter := access.AgentFilterFor(p).Usable()

	setting, err := s.settings.Get(ctx, p.UserID)
	switch {
	case err == nil && setting.PreferredAgentID != nil:
		agent, err := s.getMatching(ctx, filter, *setting.PreferredAgentID)
		if err == nil {
			return agent, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	agent, err := s.agents.FindDefault(ctx, filter)
	if err == nil {
		return agent, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	agent, err = s.agents.FindOldest(ctx, filter)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return agent, nil
}

// Create adds an agent. Managers always create inside their own organization.
func (s *AgentService) Create(ctx context.Context, p access.Principal, in AgentInput) (*models.Agent, error) {
	if !p.IsAdmin() && !p.IsManager() {
		return nil, ErrForbidden
	}

	agent := &models.Agent{
		Tone:           models.DefaultAgentTone,
		LeadStrategy:   models.DefaultAgentLeadStrategy,
		WelcomeMessage: models.DefaultAgentWelcomeMessage,
		TargetRole:     models.TargetRoleBoth,
		IsActive:       true,
		CreatedBy:      &p.UserID,
	}

	if p.IsManager() {
		if p.OrganizationID == nil {
			return nil, ErrForbidden
		}
		org := *p.OrganizationID
		agent.OrganizationID = &org
	} else if in.OrganizationID != nil && !in.ClearOrganization {
		if *in.OrganizationID == uuid.Nil {
			return nil, invalid("organization_id", "must be a valid organization id")
		}
		org := *in.OrganizationID
		agent.OrganizationID = &org
	}

	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, invalid("name", "is required")
	}
	if err := s.apply(p, agent, in); err != nil {
		return nil, err
	}
	makeDefault := agent.IsDefault
	agent.IsDefault = false

	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, err
	}
	if makeDefault {
		if err := s.agents.SetDefault(ctx, agent); err != nil {
			return nil, err
		}
	}

	s.invalidateAll(ctx)
	s.log.Info("agent created", zap.String("agent_id", agent.ID.String()), zap.String("by", p.UserID.String()))
	return agent, nil
}

// Update applies a partial update.
func (s *AgentService) Update(ctx context.Context, p access.Principal, id uuid.UUID, in AgentInput) (*models.Agent, error) {
	agent, err := s.manageable(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if (in.OrganizationID != nil || in.ClearOrganization) && !p.IsAdmin() {
		return nil, ErrForbidden
	}
	previousOrg := agent.OrganizationID
	switch {
	case in.ClearOrganization:
		agent.OrganizationID = nil
	case in.OrganizationID != nil:
		if *in.OrganizationID == uuid.Nil {
			return nil, invalid("organization_id", "must be a valid organization id")
		}
		org := *in.OrganizationID
		agent.OrganizationID = &org
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, invalid("name", "cannot be empty")
	}

	// A moved agent is only default in its new scope when asked for explicitly.
	if !sameOrganization(previousOrg, agent.OrganizationID) {
		agent.IsDefault = false
	}
	wasDefault := agent.IsDefault
	if err := s.apply(p, agent, in); err != nil {
		return nil, err
	}
	makeDefault := agent.IsDefault && !wasDefault
	if !agent.IsActive {
		agent.IsDefault, makeDefault = false, false
	}
	if makeDefault {
		agent.IsDefault = false
	}

	if err := s.agents.Update(ctx, agent); err != nil {
		return nil, err
	}
	if makeDefault {
		if err := s.agents.SetDefault(ctx, agent); err != nil {
			return nil, err
		}
	}

	s.invalidateAll(ctx)
	return agent, nil
}

// Delete soft deletes an agent.
func (s *AgentService) Delete(ctx context.Context, p access.Principal, id uuid.UUID) error {
	if _, err := s.manageable(ctx, p, id); err != nil {
		return err
	}
	if err := s.agents.Deactivate(ctx, id); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	s.log.Info("agent deactivated", zap.String("agent_id", id.String()), zap.String("by", p.UserID.String()))
	return nil
}

// SetDefault makes an active agent the default of its organization scope.
func (s *AgentService) SetDefault(ctx context.Context, p access.Principal, id uuid.UUID) (*models.Agent, error) {
	agent, err := s.manageable(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !agent.IsActive {
		return nil, invalid("is_active", "inactive agents cannot be default")
	}
	if err := s.agents.SetDefault(ctx, agent); err != nil {
		return nil, err
	}
	s.invalidateAll(ctx)
	return agent, nil
}

// Duplicate copies a visible agent. Managers copying a global agent get it in their organization.
func (s *AgentService) Duplicate(ctx context.Context, p access.Principal, id uuid.UUID) (*models.Agent, error) {
	if !p.IsAdmin() && !p.IsManager() {
		return nil, ErrForbidden
	}
	source, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}

	cp := *source
	cp.ID = uuid.Nil
	cp.Name = source.Name + " (copy)"
	cp.IsDefault = false
	cp.IsActive = true
	cp.AvatarURL = ""
	cp.CreatedBy = &p.UserID
	if !access.CanManageAgent(p, source) {
		if p.OrganizationID == nil {
			return nil, ErrForbidden
		}
		org := *p.OrganizationID
		cp.OrganizationID = &org
	}
	if !access.CanManageAgent(p, &cp) {
		return nil, ErrForbidden
	}
	if source.Config != nil {
		cp.Config = append(datatypes.JSON(nil), source.Config...)
	}

	if err := s.agents.Create(ctx, &cp); err != nil {
		return nil, err
	}
	s.invalidateAll(ctx)
	return &cp, nil
}

// UploadAvatar validates and stores an avatar, then points the agent at it.
func (s *AgentService) UploadAvatar(ctx context.Context, p access.Principal, id uuid.UUID, filename string, size int64, contentType string, file io.Reader) (*models.Agent, error) {
	agent, err := s.manageable(ctx, p, id)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !contains(s.policy.AllowedExts, ext) {
		return nil, invalid("file", "file type %q is not allowed", ext)
	}
	if s.policy.MaxSize > 0 && size > s.policy.MaxSize {
		return nil, invalid("file", "file exceeds %d bytes", s.policy.MaxSize)
	}

	if _, err := s.avatars.PutAvatar(ctx, agent.ID, ext, file, size, contentType); err != nil {
		return nil, err
	}

	agent.AvatarURL = AvatarURL(agent.ID)
	if err := s.agents.Update(ctx, agent); err != nil {
		return nil, err
	}
	s.invalidateAll(ctx)
	return agent, nil
}

// Avatar opens the avatar of a visible agent.
func (s *AgentService) Avatar(ctx context.Context, p access.Principal, id uuid.UUID) (*storage.Object, error) {
	if _, err := s.Get(ctx, p, id); err != nil {
		return nil, err
	}
	obj, err := s.avatars.GetAvatar(ctx, id)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrNotFound
	}
	return obj, err
}

// AvatarURL is the public path serving an agent avatar.
func AvatarURL(agentID uuid.UUID) string {
	return fmt.Sprintf("/api/agents/%s/avatar", agentID)
}

// manageable loads an agent p may change. Invisible agents are not found,
// visible but read-only ones are forbidden.
func (s *AgentService) manageable(ctx context.Context, p access.Principal, id uuid.UUID) (*models.Agent, error) {
	agent, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !access.CanManageAgent(p, agent) {
		return nil, ErrForbidden
	}
	return agent, nil
}

func (s *AgentService) apply(p access.Principal, agent *models.Agent, in AgentInput) error {
	if in.Name != nil {
		agent.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		agent.Description = *in.Description
	}
	if in.Prompt != nil {
		agent.Prompt = *in.Prompt
	}
	if in.Tone != nil {
		if !contains(agentTones, *in.Tone) {
			return invalid("tone", "must be one of %s", strings.Join(agentTones, ", "))
		}
		agent.Tone = *in.Tone
	}
	if in.LeadStrategy != nil {
		if !contains(agentLeadStrategies, *in.LeadStrategy) {
			return invalid("lead_strategy", "must be one of %s", strings.Join(agentLeadStrategies, ", "))
		}
		agent.LeadStrategy = *in.LeadStrategy
	}
	if in.WelcomeMessage != nil {
		agent.WelcomeMessage = *in.WelcomeMessage
		if strings.TrimSpace(agent.WelcomeMessage) == "" {
			agent.WelcomeMessage = models.DefaultAgentWelcomeMessage
		}
	}
	if in.PreQuoteMessage != nil {
		agent.PreQuoteMessage = *in.PreQuoteMessage
	}
	if in.TargetRole != nil {
		if !access.ValidTargetRole(*in.TargetRole) {
			return invalid("target_role", "must be one of user, shop, both, admin")
		}
		if *in.TargetRole == models.TargetRoleAdmin && !p.IsAdmin() {
			return ErrForbidden
		}
		agent.TargetRole = *in.TargetRole
	}
	if in.Config != nil {
		agent.Config = *in.Config
	}
	if in.IsActive != nil {
		agent.IsActive = *in.IsActive
	}
	if in.IsDefault != nil {
		agent.IsDefault = *in.IsDefault
	}
	return nil
}

func (s *AgentService) invalidateAll(ctx context.Context) {
	if err := s.cache.InvalidateAllPreferredAgents(ctx); err != nil {
		s.log.Warn("failed to invalidate preferred agent cache", zap.Error(err))
	}
}

func sameOrganization(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
