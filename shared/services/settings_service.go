package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/repository"
)

var (
	settingLanguages = []string{"en", "es", "fr", "de", "it", "pt", "tr"}
	settingThemes    = []string{"light", "dark", "system"}
)

// SettingsInput is a partial settings update. ClearPreferredAgent resets the preference.
type SettingsInput struct {
	PreferredAgentID     *uuid.UUID `json:"preferred_agent_id"`
	ClearPreferredAgent  bool       `json:"clear_preferred_agent"`
	Language             *string    `json:"language"`
	Theme                *string    `json:"theme"`
	NotificationsEnabled *bool      `json:"notifications_enabled"`
	VibrationEnabled     *bool      `json:"vibration_enabled"`
}

type SettingsService struct {
	settings repository.SettingRepository
	agents   *AgentService
	cache    PreferredAgentCache
	log      *zap.Logger
}

func NewSettingsService(repos repository.Repositories, agents *AgentService, cache PreferredAgentCache, log *zap.Logger) *SettingsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettingsService{settings: repos.Settings, agents: agents, cache: cache, log: log}
}

// Get returns the caller's settings, saving defaults on first access.
func (s *SettingsService) Get(ctx context.Context, p access.Principal) (*models.Setting, error) {
	setting, err := s.settings.Get(ctx, p.UserID)
	if err == nil {
		return setting, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	def := models.DefaultSetting(p.UserID)
	if err := s.settings.Save(ctx, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Update applies a partial update. A preferred agent must be usable by the caller.
func (s *SettingsService) Update(ctx context.Context, p access.Principal, in SettingsInput) (*models.Setting, error) {
	setting, err := s.Get(ctx, p)
	if err != nil {
		return nil, err
	}

	switch {
	case in.ClearPreferredAgent:
		setting.PreferredAgentID = nil
	case in.PreferredAgentID != nil:
		if _, err := s.agents.GetUsable(ctx, p, *in.PreferredAgentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, invalid("preferred_agent_id", "agent not found or not available")
			}
			return nil, err
		}
		id := *in.PreferredAgentID
		setting.PreferredAgentID = &id
	}

	if in.Language != nil {
		if !contains(settingLanguages, *in.Language) {
			return nil, invalid("language", "unsupported language %q", *in.Language)
		}
		setting.Language = *in.Language
	}
	if in.Theme != nil {
		if !contains(settingThemes, *in.Theme) {
			return nil, invalid("theme", "must be light, dark or system")
		}
		setting.Theme = *in.Theme
	}
	if in.NotificationsEnabled != nil {
		setting.NotificationsEnabled = *in.NotificationsEnabled
	}
	if in.VibrationEnabled != nil {
		setting.VibrationEnabled = *in.VibrationEnabled
	}

	if err := s.settings.Save(ctx, setting); err != nil {
		return nil, err
	}

	if err := s.cache.InvalidatePreferredAgent(ctx, p.UserID); err != nil {
		s.log.Warn("failed to invalidate preferred agent", zap.String("user_id", p.UserID.String()), zap.Error(err))
	}
	return setting, nil
}
