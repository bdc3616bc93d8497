package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/middleware"
	"agentdesk-backend/shared/repository"
	"agentdesk-backend/shared/services"
	"agentdesk-backend/shared/utils/auth"
	"agentdesk-backend/shared/utils/cache"
	"agentdesk-backend/shared/utils/query"
)

type envelope struct {
	Success    bool                      `json:"success"`
	Data       json.RawMessage           `json:"data"`
	Pagination *query.PaginationResponse `json:"pagination"`
	Error      string                    `json:"error"`
}

type fixture struct {
	t      *testing.T
	router *gin.Engine
	repos  repository.Repositories
	tokens *auth.TokenManager
	cache  *cache.MemoryCache

	orgA, orgB *models.Organization
	shopA      *models.Shop
	shopB      *models.Shop
	admin      *models.User
	manager    *models.User
	member     *models.User
	outsider   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	f := &fixture{
		t:      t,
		repos:  repository.NewMemory(),
		tokens: auth.NewTokenManager("test-secret", time.Hour, 24*time.Hour),
	}

	f.orgA = &models.Organization{Name: "Acme", Slug: "acme", Status: models.StatusActive}
	f.orgB = &models.Organization{Name: "Globex", Slug: "globex", Status: models.StatusActive}
	require.NoError(t, f.repos.Organizations.Create(ctx, f.orgA))
	require.NoError(t, f.repos.Organizations.Create(ctx, f.orgB))

	f.shopA = &models.Shop{OrganizationID: f.orgA.ID, Name: "Downtown", Slug: "downtown", IsActive: true}
	f.shopB = &models.Shop{OrganizationID: f.orgB.ID, Name: "Uptown", Slug: "uptown", IsActive: true}
	require.NoError(t, f.repos.Shops.Create(ctx, f.shopA))
	require.NoError(t, f.repos.Shops.Create(ctx, f.shopB))

	f.admin = f.addUser("root@agentdesk.local", access.RoleAdmin, nil, nil)
	f.manager = f.addUser("boss@acme.io", access.RoleManager, &f.orgA.ID, nil)
	f.member = f.addUser("member@acme.io", access.RoleUser, &f.orgA.ID, &f.shopA.ID)
	f.outsider = f.addUser("someone@globex.io", access.RoleUser, &f.orgB.ID, nil)

	memCache := cache.NewMemoryCache(time.Minute)
	f.cache = memCache
	agents := services.NewAgentService(f.repos, memCache, nil, services.AvatarPolicy{}, zap.NewNop())

	f.router = gin.New()
	RegisterRoutes(f.router, Handlers{
		Organizations: NewOrganizationHandler(f.repos, memCache, zap.NewNop()),
		Shops:         NewShopHandler(f.repos, zap.NewNop()),
		Users:         NewUserHandler(f.repos, memCache, zap.NewNop()),
		Settings:      NewSettingsHandler(services.NewSettingsService(f.repos, agents, memCache, zap.NewNop())),
	}, middleware.AuthMiddleware(f.tokens, memCache))
	return f
}

func (f *fixture) addUser(email, role string, orgID, shopID *uuid.UUID) *models.User {
	u := &models.User{Email: email, Password: "x", Role: role, OrganizationID: orgID, ShopID: shopID, Status: models.StatusActive}
	require.NoError(f.t, f.repos.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) do(as *models.User, method, path string, body interface{}) (int, envelope) {
	f.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	token, _, err := f.tokens.GenerateAccessToken(access.Principal{
		UserID:         as.ID,
		Email:          as.Email,
		Role:           as.Role,
		OrganizationID: as.OrganizationID,
		ShopID:         as.ShopID,
	})
	require.NoError(f.t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/organizations", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrganizationVisibility(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(f.admin, http.MethodGet, "/api/organizations", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2), env.Pagination.Total)

	code, env = f.do(f.manager, http.MethodGet, "/api/organizations", nil)
	require.Equal(t, http.StatusOK, code)
	orgs := decode[[]models.Organization](t, env.Data)
	require.Len(t, orgs, 1)
	assert.Equal(t, f.orgA.ID, orgs[0].ID)

	code, _ = f.do(f.manager, http.MethodGet, "/api/organizations/"+f.orgB.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(f.member, http.MethodGet, "/api/organizations/"+f.orgA.ID.String(), nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(f.admin, http.MethodGet, "/api/organizations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateOrganization(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(f.manager, http.MethodPost, "/api/organizations", CreateOrganizationRequest{Name: "Initech"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env := f.do(f.admin, http.MethodPost, "/api/organizations", CreateOrganizationRequest{Name: "Initech Labs"})
	require.Equal(t, http.StatusCreated, code)
	org := decode[models.Organization](t, env.Data)
	assert.Equal(t, "initech-labs", org.Slug)
	assert.Equal(t, models.StatusActive, org.Status)

	code, _ = f.do(f.admin, http.MethodPost, "/api/organizations", CreateOrganizationRequest{Name: "Acme Again", Slug: "acme"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = f.do(f.admin, http.MethodPost, "/api/organizations", CreateOrganizationRequest{Name: "Bad", Slug: "Not A Slug"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUpdateOrganizationRights(t *testing.T) {
	f := newFixture(t)
	path := "/api/organizations/" + f.orgA.ID.String()

	name := "Acme Retail"
	code, env := f.do(f.manager, http.MethodPut, path, UpdateOrganizationRequest{Name: &name})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, name, decode[models.Organization](t, env.Data).Name)

	status := models.StatusInactive
	code, _ = f.do(f.manager, http.MethodPut, path, UpdateOrganizationRequest{Status: &status})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(f.member, http.MethodPut, path, UpdateOrganizationRequest{Name: &name})
	assert.Equal(t, http.StatusForbidden, code)

	slug := "globex"
	code, _ = f.do(f.admin, http.MethodPut, path, UpdateOrganizationRequest{Slug: &slug})
	assert.Equal(t, http.StatusConflict, code)
}

func TestDeleteOrganizationCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, _ := f.do(f.manager, http.MethodDelete, "/api/organizations/"+f.orgA.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(f.admin, http.MethodDelete, "/api/organizations/"+f.orgA.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)

	org, err := f.repos.Organizations.Get(ctx, f.orgA.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, org.Status)

	shop, err := f.repos.Shops.Get(ctx, f.shopA.ID)
	require.NoError(t, err)
	assert.False(t, shop.IsActive)

	member, err := f.repos.Users.Get(ctx, f.member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, member.Status)

	code, _ = f.do(f.admin, http.MethodDelete, "/api/organizations/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestShopScopes(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(f.admin, http.MethodGet, "/api/shops?filters[organization_id]="+f.orgB.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	shops := decode[[]models.Shop](t, env.Data)
	require.Len(t, shops, 1)
	assert.Equal(t, f.shopB.ID, shops[0].ID)

	code, env = f.do(f.member, http.MethodGet, "/api/shops", nil)
	require.Equal(t, http.StatusOK, code)
	shops = decode[[]models.Shop](t, env.Data)
	require.Len(t, shops, 1)
	assert.Equal(t, f.shopA.ID, shops[0].ID)

	code, env = f.do(f.outsider, http.MethodGet, "/api/shops", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(0), env.Pagination.Total)

	code, _ = f.do(f.manager, http.MethodGet, "/api/shops/"+f.shopB.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestManagerCreatesShopInOwnOrganization(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(f.manager, http.MethodPost, "/api/shops", CreateShopRequest{OrganizationID: &f.orgB.ID, Name: "Harbour Point"})
	require.Equal(t, http.StatusCreated, code)
	shop := decode[models.Shop](t, env.Data)
	assert.Equal(t, f.orgA.ID, shop.OrganizationID)
	assert.Equal(t, "harbour-point", shop.Slug)
	assert.True(t, shop.IsActive)

	code, _ = f.do(f.manager, http.MethodPost, "/api/shops", CreateShopRequest{Name: "Downtown"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = f.do(f.member, http.MethodPost, "/api/shops", CreateShopRequest{Name: "Mine"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(f.admin, http.MethodPost, "/api/shops", CreateShopRequest{Name: "Nowhere"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDeleteShopDetachesUsers(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(f.member, http.MethodDelete, "/api/shops/"+f.shopA.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(f.manager, http.MethodDelete, "/api/shops/"+f.shopA.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)

	member, err := f.repos.Users.Get(context.Background(), f.member.ID)
	require.NoError(t, err)
	assert.Nil(t, member.ShopID)
}

func TestUserListScopes(t *testing.T) {
	f := newFixture(t)

	_, env := f.do(f.admin, http.MethodGet, "/api/users", nil)
	assert.Equal(t, int64(4), env.Pagination.Total)

	_, env = f.do(f.manager, http.MethodGet, "/api/users", nil)
	assert.Equal(t, int64(2), env.Pagination.Total)

	_, env = f.do(f.member, http.MethodGet, "/api/users", nil)
	users := decode[[]models.User](t, env.Data)
	require.Len(t, users, 1)
	assert.Equal(t, f.member.ID, users[0].ID)

	code, _ := f.do(f.manager, http.MethodGet, "/api/users/"+f.outsider.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(f.manager, http.MethodPost, "/api/users", CreateUserRequest{Email: "new@acme.io", Password: "long-enough", Role: access.RoleAdmin})
	assert.Equal(t, http.StatusForbidden, code)

	code, env := f.do(f.manager, http.MethodPost, "/api/users", CreateUserRequest{
		Email:          "New.Clerk@Acme.io",
		Password:       "long-enough",
		Role:           access.RoleShop,
		OrganizationID: &f.orgB.ID,
		ShopID:         &f.shopA.ID,
	})
	require.Equal(t, http.StatusCreated, code, string(env.Data))
	created := decode[models.User](t, env.Data)
	assert.Equal(t, "new.clerk@acme.io", created.Email)
	require.NotNil(t, created.OrganizationID)
	assert.Equal(t, f.orgA.ID, *created.OrganizationID)

	stored, err := f.repos.Users.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPasswordHash("long-enough", stored.Password))

	code, _ = f.do(f.manager, http.MethodPost, "/api/users", CreateUserRequest{Email: "other@acme.io", Password: "long-enough", ShopID: &f.shopB.ID})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(f.admin, http.MethodPost, "/api/users", CreateUserRequest{Email: "member@acme.io", Password: "long-enough"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = f.do(f.member, http.MethodPost, "/api/users", CreateUserRequest{Email: "x@acme.io", Password: "long-enough"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	self := "/api/users/" + f.member.ID.String()

	name := "Mia"
	code, _ := f.do(f.member, http.MethodPut, self, UpdateUserRequest{FirstName: &name})
	assert.Equal(t, http.StatusOK, code)

	role := access.RoleManager
	code, _ = f.do(f.member, http.MethodPut, self, UpdateUserRequest{Role: &role})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(f.member, http.MethodPut, "/api/users/"+f.manager.ID.String(), UpdateUserRequest{FirstName: &name})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(f.manager, http.MethodPut, self, UpdateUserRequest{Role: &role})
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(f.manager, http.MethodPut, "/api/users/"+f.admin.ID.String(), UpdateUserRequest{FirstName: &name})
	assert.Equal(t, http.StatusNotFound, code)

	password := "brand-new-pass"
	code, _ = f.do(f.manager, http.MethodPut, self, UpdateUserRequest{Password: &password})
	require.Equal(t, http.StatusOK, code)
	stored, err := f.repos.Users.Get(context.Background(), f.member.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPasswordHash(password, stored.Password))
	assert.Equal(t, access.RoleManager, stored.Role)
}

func TestUpdateUserAccessDropsCachedAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := "/api/users/" + f.member.ID.String()
	cached := &models.Agent{ID: uuid.New(), Name: "Shop helper", TargetRole: models.TargetRoleShop}

	require.NoError(t, f.cache.SetPreferredAgent(ctx, f.member.ID, cached))
	name := "Mia"
	code, _ := f.do(f.manager, http.MethodPut, path, UpdateUserRequest{FirstName: &name})
	require.Equal(t, http.StatusOK, code)
	_, ok := f.cache.GetPreferredAgent(ctx, f.member.ID)
	assert.True(t, ok, "profile edits keep the cached agent")

	role := access.RoleShop
	code, _ = f.do(f.manager, http.MethodPut, path, UpdateUserRequest{Role: &role})
	require.Equal(t, http.StatusOK, code)
	_, ok = f.cache.GetPreferredAgent(ctx, f.member.ID)
	assert.False(t, ok)

	require.NoError(t, f.cache.SetPreferredAgent(ctx, f.member.ID, cached))
	code, _ = f.do(f.manager, http.MethodPut, path, UpdateUserRequest{ClearShop: true})
	require.Equal(t, http.StatusOK, code)
	_, ok = f.cache.GetPreferredAgent(ctx, f.member.ID)
	assert.False(t, ok)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(f.manager, http.MethodDelete, "/api/users/"+f.manager.ID.String(), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(f.manager, http.MethodDelete, "/api/users/"+f.admin.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(f.manager, http.MethodDelete, "/api/users/"+f.member.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)

	member, err := f.repos.Users.Get(context.Background(), f.member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, member.Status)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, env := f.do(f.member, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, code)
	setting := decode[models.Setting](t, env.Data)
	assert.Equal(t, "en", setting.Language)
	assert.True(t, setting.VibrationEnabled)

	hidden := &models.Agent{Name: "Globex bot", OrganizationID: &f.orgB.ID, TargetRole: models.TargetRoleBoth, IsActive: true}
	visible := &models.Agent{Name: "Acme bot", OrganizationID: &f.orgA.ID, TargetRole: models.TargetRoleUser, IsActive: true}
	require.NoError(t, f.repos.Agents.Create(ctx, hidden))
	require.NoError(t, f.repos.Agents.Create(ctx, visible))

	code, _ = f.do(f.member, http.MethodPut, "/api/settings", services.SettingsInput{PreferredAgentID: &hidden.ID})
	assert.Equal(t, http.StatusBadRequest, code)

	theme := "dark"
	code, env = f.do(f.member, http.MethodPut, "/api/settings", services.SettingsInput{PreferredAgentID: &visible.ID, Theme: &theme})
	require.Equal(t, http.StatusOK, code)
	setting = decode[models.Setting](t, env.Data)
	require.NotNil(t, setting.PreferredAgentID)
	assert.Equal(t, visible.ID, *setting.PreferredAgentID)
	assert.Equal(t, "dark", setting.Theme)

	lang := "xx"
	code, _ = f.do(f.member, http.MethodPut, "/api/settings", services.SettingsInput{Language: &lang})
	assert.Equal(t, http.StatusBadRequest, code)
}
