package services

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/repository"
	"agentdesk-backend/shared/storage"
	"agentdesk-backend/shared/utils/cache"
	"agentdesk-backend/shared/utils/query"
)

type fixture struct {
	repos    repository.Repositories
	cache    *cache.MemoryCache
	avatars  *storage.MemoryStore
	agents   *AgentService
	settings *SettingsService
	org      uuid.UUID
	admin    access.Principal
	manager  access.Principal
	user     access.Principal
	shop     access.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repos:   repository.NewMemory(),
		cache:   cache.NewMemoryCache(time.Minute),
		avatars: storage.NewMemoryStore(),
		org:     uuid.New(),
	}
	policy := AvatarPolicy{MaxSize: 1024, AllowedExts: []string{".png", ".jpg"}}
	f.agents = NewAgentService(f.repos, f.cache, f.avatars, policy, zap.NewNop())
	f.settings = NewSettingsService(f.repos, f.agents, f.cache, zap.NewNop())

	f.admin = access.Principal{UserID: uuid.New(), Role: access.RoleAdmin}
	f.manager = access.Principal{UserID: uuid.New(), Role: access.RoleManager, OrganizationID: &f.org}
	f.user = access.Principal{UserID: uuid.New(), Role: access.RoleUser, OrganizationID: &f.org}
	f.shop = access.Principal{UserID: uuid.New(), Role: access.RoleShop, OrganizationID: &f.org}
	return f
}

func (f *fixture) seed(t *testing.T, a *models.Agent) *models.Agent {
	t.Helper()
	if a.TargetRole == "" {
		a.TargetRole = models.TargetRoleBoth
	}
	require.NoError(t, f.repos.Agents.Create(context.Background(), a))
	return a
}

func str(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }

func page() query.FilterParams {
	return query.FilterParams{Page: 1, Limit: 50, Filters: map[string]string{}, Sort: query.SortParams{Field: "created_at", Order: "asc"}}
}

func TestCreateAppliesDefaultsAndScopesManagers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := uuid.New()

	agent, err := f.agents.Create(ctx, f.manager, AgentInput{Name: str(" Sales "), OrganizationID: &other})
	require.NoError(t, err)

	assert.Equal(t, "Sales", agent.Name)
	assert.Equal(t, f.org, *agent.OrganizationID)
	assert.Equal(t, models.DefaultAgentTone, agent.Tone)
	assert.Equal(t, models.DefaultAgentLeadStrategy, agent.LeadStrategy)
	assert.Equal(t, models.DefaultAgentWelcomeMessage, agent.WelcomeMessage)
	assert.Equal(t, models.TargetRoleBoth, agent.TargetRole)
	assert.True(t, agent.IsActive)
	assert.Equal(t, f.manager.UserID, *agent.CreatedBy)
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.agents.Create(ctx, f.user, AgentInput{Name: str("x")})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.agents.Create(ctx, f.manager, AgentInput{Name: str("x"), TargetRole: str(models.TargetRoleAdmin)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.agents.Create(ctx, f.admin, AgentInput{Name: str("  ")})
	v, ok := IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "name", v.Field)

	_, err = f.agents.Create(ctx, f.admin, AgentInput{Name: str("x"), Tone: str("angry")})
	_, ok = IsValidation(err)
	assert.True(t, ok)

	_, err = f.agents.Create(ctx, f.admin, AgentInput{Name: str("x"), TargetRole: str("everyone")})
	_, ok = IsValidation(err)
	assert.True(t, ok)
}

func TestGetHidesInvisibleAgents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreign := uuid.New()

	otherOrg := f.seed(t, &models.Agent{Name: "Foreign", OrganizationID: &foreign, IsActive: true})
	inactive := f.seed(t, &models.Agent{Name: "Off", OrganizationID: &f.org, IsActive: false})
	shopOnly := f.seed(t, &models.Agent{Name: "Desk", OrganizationID: &f.org, TargetRole: models.TargetRoleShop, IsActive: true})

	_, err := f.agents.Get(ctx, f.user, otherOrg.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.agents.Get(ctx, f.user, inactive.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.agents.Get(ctx, f.user, shopOnly.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.agents.Get(ctx, f.shop, shopOnly.ID)
	require.NoError(t, err)
	assert.Equal(t, shopOnly.ID, got.ID)

	_, err = f.agents.Get(ctx, f.manager, inactive.ID)
	assert.NoError(t, err)

	_, err = f.agents.Get(ctx, f.admin, otherOrg.ID)
	assert.NoError(t, err)
}

func TestPreferredResolutionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.agents.Preferred(ctx, f.user)
	assert.ErrorIs(t, err, ErrNotFound)

	oldest := f.seed(t, &models.Agent{Name: "Oldest", OrganizationID: &f.org, IsActive: true})
	def := f.seed(t, &models.Agent{Name: "Default", OrganizationID: &f.org, IsActive: true})
	chosen := f.seed(t, &models.Agent{Name: "Chosen", OrganizationID: &f.org, IsActive: true})

	got, err := f.agents.Preferred(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, got.ID)

	_, err = f.agents.SetDefault(ctx, f.manager, def.ID)
	require.NoError(t, err)
	got, err = f.agents.Preferred(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, def.ID, got.ID, "set default invalidates the cache")

	_, err = f.settings.Update(ctx, f.user, SettingsInput{PreferredAgentID: &chosen.ID})
	require.NoError(t, err)
	got, err = f.agents.Preferred(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, chosen.ID, got.ID)

	require.NoError(t, f.agents.Delete(ctx, f.manager, chosen.ID))
	got, err = f.agents.Preferred(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, def.ID, got.ID, "deleted preference falls back to the default")
}

func TestPreferredIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.seed(t, &models.Agent{Name: "Only", OrganizationID: &f.org, IsActive: true})

	_, err := f.agents.Preferred(ctx, f.user)
	require.NoError(t, err)

	cached, ok := f.cache.GetPreferredAgent(ctx, f.user.UserID)
	require.True(t, ok)
	assert.Equal(t, agent.ID, cached.ID)
}

func TestUpdateAndSetDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, &models.Agent{Name: "A", OrganizationID: &f.org, IsActive: true})
	b := f.seed(t, &models.Agent{Name: "B", OrganizationID: &f.org, IsActive: true})
	global := f.seed(t, &models.Agent{Name: "G", IsActive: true})

	_, err := f.agents.SetDefault(ctx, f.manager, a.ID)
	require.NoError(t, err)

	updated, err := f.agents.Update(ctx, f.manager, b.ID, AgentInput{IsDefault: boolPtr(true), Prompt: str("Be brief")})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, "Be brief", updated.Prompt)

	gotA, _ := f.repos.Agents.Get(ctx, a.ID)
	assert.False(t, gotA.IsDefault)

	_, err = f.agents.Update(ctx, f.manager, global.ID, AgentInput{Name: str("mine")})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.agents.Update(ctx, f.user, a.ID, AgentInput{Name: str("mine")})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.agents.Update(ctx, f.manager, a.ID, AgentInput{OrganizationID: &uuid.Nil})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.agents.Delete(ctx, f.manager, b.ID))
	_, err = f.agents.SetDefault(ctx, f.manager, b.ID)
	_, ok := IsValidation(err)
	assert.True(t, ok)
}

func TestMovingDefaultAgentKeepsOneDefaultPerScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := uuid.New()

	a := f.seed(t, &models.Agent{Name: "A", OrganizationID: &f.org, IsActive: true})
	b := f.seed(t, &models.Agent{Name: "B", OrganizationID: &other, IsActive: true})
	_, err := f.agents.SetDefault(ctx, f.admin, a.ID)
	require.NoError(t, err)
	_, err = f.agents.SetDefault(ctx, f.admin, b.ID)
	require.NoError(t, err)

	moved, err := f.agents.Update(ctx, f.admin, a.ID, AgentInput{OrganizationID: &other})
	require.NoError(t, err)
	assert.Equal(t, other, *moved.OrganizationID)
	assert.False(t, moved.IsDefault)

	gotA, _ := f.repos.Agents.Get(ctx, a.ID)
	gotB, _ := f.repos.Agents.Get(ctx, b.ID)
	assert.False(t, gotA.IsDefault)
	assert.True(t, gotB.IsDefault)

	moved, err = f.agents.Update(ctx, f.admin, a.ID, AgentInput{OrganizationID: &f.org, IsDefault: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, moved.IsDefault)
	gotB, _ = f.repos.Agents.Get(ctx, b.ID)
	assert.True(t, gotB.IsDefault, "a default in another organization is untouched")

	def, err := f.repos.Agents.FindDefault(ctx, access.AgentFilterFor(f.manager))
	require.NoError(t, err)
	assert.Equal(t, a.ID, def.ID)
}

func TestOrganizationInputValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.agents.Create(ctx, f.admin, AgentInput{Name: str("x"), OrganizationID: &uuid.Nil})
	v, ok := IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "organization_id", v.Field)

	a := f.seed(t, &models.Agent{Name: "A", OrganizationID: &f.org, IsActive: true})
	_, err = f.agents.Update(ctx, f.admin, a.ID, AgentInput{OrganizationID: &uuid.Nil})
	_, ok = IsValidation(err)
	assert.True(t, ok)

	_, err = f.agents.Update(ctx, f.manager, a.ID, AgentInput{ClearOrganization: true})
	assert.ErrorIs(t, err, ErrForbidden)

	global, err := f.agents.Update(ctx, f.admin, a.ID, AgentInput{ClearOrganization: true})
	require.NoError(t, err)
	assert.Nil(t, global.OrganizationID)

	got, err := f.repos.Agents.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.OrganizationID)
}

func TestDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	global := f.seed(t, &models.Agent{Name: "Template", IsActive: true, IsDefault: true})

	cp, err := f.agents.Duplicate(ctx, f.manager, global.ID)
	require.NoError(t, err)
	assert.NotEqual(t, global.ID, cp.ID)
	assert.Equal(t, "Template (copy)", cp.Name)
	assert.False(t, cp.IsDefault)
	assert.Equal(t, f.org, *cp.OrganizationID)

	adminCopy, err := f.agents.Duplicate(ctx, f.admin, global.ID)
	require.NoError(t, err)
	assert.Nil(t, adminCopy.OrganizationID)

	_, err = f.agents.Duplicate(ctx, f.user, global.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUploadAvatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, &models.Agent{Name: "A", OrganizationID: &f.org, IsActive: true})

	_, err := f.agents.UploadAvatar(ctx, f.manager, a.ID, "face.gif", 10, "image/gif", strings.NewReader("x"))
	_, ok := IsValidation(err)
	assert.True(t, ok)

	_, err = f.agents.UploadAvatar(ctx, f.manager, a.ID, "face.png", 4096, "image/png", strings.NewReader("x"))
	_, ok = IsValidation(err)
	assert.True(t, ok)

	updated, err := f.agents.UploadAvatar(ctx, f.manager, a.ID, "Face.PNG", 3, "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, AvatarURL(a.ID), updated.AvatarURL)
	assert.Equal(t, []string{storage.AvatarKey(a.ID, ".png")}, f.avatars.Keys())

	obj, err := f.agents.Avatar(ctx, f.user, a.ID)
	require.NoError(t, err)
	defer obj.Body.Close()
	data, _ := io.ReadAll(obj.Body)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "image/png", obj.ContentType)
}

func TestListIsScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreign := uuid.New()
	f.seed(t, &models.Agent{Name: "Mine", OrganizationID: &f.org, IsActive: true})
	f.seed(t, &models.Agent{Name: "Theirs", OrganizationID: &foreign, IsActive: true})
	f.seed(t, &models.Agent{Name: "Global", IsActive: true})

	_, total, err := f.agents.List(ctx, f.user, page())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = f.agents.List(ctx, f.admin, page())
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.settings.Get(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, "en", s.Language)
	assert.True(t, s.VibrationEnabled)

	foreign := uuid.New()
	hidden := f.seed(t, &models.Agent{Name: "Hidden", OrganizationID: &foreign, IsActive: true})
	_, err = f.settings.Update(ctx, f.user, SettingsInput{PreferredAgentID: &hidden.ID})
	v, ok := IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "preferred_agent_id", v.Field)

	_, err = f.settings.Update(ctx, f.user, SettingsInput{Theme: str("neon")})
	_, ok = IsValidation(err)
	assert.True(t, ok)

	s, err = f.settings.Update(ctx, f.user, SettingsInput{Theme: str("dark"), VibrationEnabled: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "dark", s.Theme)
	assert.False(t, s.VibrationEnabled)
}
