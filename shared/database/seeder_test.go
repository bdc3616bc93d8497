package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/repository"
	"agentdesk-backend/shared/utils/auth"
	"agentdesk-backend/shared/utils/query"
)

func TestDefaultSeedDataParses(t *testing.T) {
	data, err := DefaultSeedData()
	require.NoError(t, err)

	assert.Equal(t, "platform", data.Organization.Slug)
	require.NotEmpty(t, data.Agents)

	defaults := 0
	for _, preset := range data.Agents {
		assert.True(t, access.ValidTargetRole(preset.TargetRole), preset.Name)
		if preset.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestParseSeedDataRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"syntax":         "organization: [",
		"no slug":        "organization:\n  name: X\n",
		"unnamed agent":  "organization:\n  name: X\n  slug: x\nagents:\n  - prompt: hi\n",
		"duplicate":      "organization:\n  name: X\n  slug: x\nagents:\n  - name: A\n  - name: A\n",
		"unknown target": "organization:\n  name: X\n  slug: x\nagents:\n  - name: A\n    target_role: robots\n",
	}
	for name, raw := range cases {
		_, err := ParseSeedData([]byte(raw))
		assert.Error(t, err, name)
	}

	data, err := ParseSeedData([]byte("organization:\n  name: X\n  slug: x\nagents:\n  - name: A\n"))
	require.NoError(t, err)
	assert.Equal(t, models.TargetRoleBoth, data.Agents[0].TargetRole)
}

func TestSeederIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemory()
	seeder := NewSeeder(repos, zap.NewNop())

	data, err := DefaultSeedData()
	require.NoError(t, err)

	result, err := seeder.Seed(ctx, data, " Root@AgentDesk.local ", "admin123")
	require.NoError(t, err)
	assert.True(t, result.OrganizationCreated)
	assert.True(t, result.AdminCreated)
	assert.Equal(t, len(data.Agents), result.AgentsCreated)

	org, err := repos.Organizations.GetBySlug(ctx, "platform")
	require.NoError(t, err)

	admin, err := repos.Users.GetByEmail(ctx, "root@agentdesk.local")
	require.NoError(t, err)
	assert.Equal(t, access.RoleAdmin, admin.Role)
	assert.Equal(t, org.ID, *admin.OrganizationID)
	assert.True(t, auth.CheckPasswordHash("admin123", admin.Password))

	agents, total, err := repos.Agents.List(ctx, access.AgentFilter{IncludeGlobal: true}, query.FilterParams{Page: 1, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data.Agents)), total)
	for _, a := range agents {
		assert.Nil(t, a.OrganizationID, a.Name)
		assert.True(t, a.IsActive, a.Name)
		assert.NotEmpty(t, a.Config, a.Name)
	}

	def, err := repos.Agents.FindDefault(ctx, access.AgentFilter{IncludeGlobal: true})
	require.NoError(t, err)
	assert.Equal(t, "Concierge", def.Name)

	again, err := seeder.Seed(ctx, data, "root@agentdesk.local", "admin123")
	require.NoError(t, err)
	assert.False(t, again.OrganizationCreated)
	assert.False(t, again.AdminCreated)
	assert.Zero(t, again.AgentsCreated)

	_, total, err = repos.Agents.List(ctx, access.AgentFilter{IncludeGlobal: true}, query.FilterParams{Page: 1, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data.Agents)), total)
}

func TestSeederRequiresAdminCredentials(t *testing.T) {
	data, err := DefaultSeedData()
	require.NoError(t, err)

	_, err = NewSeeder(repository.NewMemory(), nil).Seed(context.Background(), data, "", "")
	assert.Error(t, err)
}
