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
	"agentdesk-backend/shared/utils/auth"
	"agentdesk-backend/shared/utils/cache"
)

type testEnv struct {
	router *gin.Engine
	repos  repository.Repositories
	cache  *cache.MemoryCache
	tokens *auth.TokenManager
	user   *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		repos:  repository.NewMemory(),
		cache:  cache.NewMemoryCache(time.Minute),
		tokens: auth.NewTokenManager("test-secret", time.Hour, 24*time.Hour),
	}

	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	org := uuid.New()
	env.user = &models.User{Email: "jane@acme.io", Password: hash, FirstName: "Jane", Role: access.RoleManager, OrganizationID: &org, Status: models.StatusActive}
	require.NoError(t, env.repos.Users.Create(context.Background(), env.user))

	loginCfg := middleware.RateLimitConfig{MaxRequests: 3, TimeWindow: time.Minute, BlockDuration: time.Minute}
	h := NewAuthHandler(env.repos, env.tokens, env.cache, middleware.NewRateLimiter(), loginCfg, zap.NewNop())

	env.router = gin.New()
	RegisterRoutes(env.router, h, middleware.AuthMiddleware(env.tokens, env.cache))
	return env
}

func (env *testEnv) request(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

type loginEnvelope struct {
	Success bool          `json:"success"`
	Data    LoginResponse `json:"data"`
}

func (env *testEnv) login(t *testing.T) LoginResponse {
	t.Helper()
	w := env.request(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "JANE@acme.io", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out loginEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.True(t, out.Success)
	return out.Data
}

func TestLoginIssuesTokensWithRole(t *testing.T) {
	env := newTestEnv(t)

	resp := env.login(t)
	assert.Equal(t, env.user.ID, resp.User.ID)
	assert.Equal(t, access.RoleManager, resp.User.Role)
	assert.NotNil(t, resp.User.LastLoginAt)

	claims, err := env.tokens.ValidateAccessToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, access.RoleManager, claims.Role)
	assert.Equal(t, env.user.OrganizationID.String(), claims.OrganizationID)

	attempts, err := env.repos.LoginAttempts.ListForUser(context.Background(), env.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Successful)
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "jane@acme.io", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.request(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ghost@acme.io", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.request(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, env.repos.Users.Deactivate(context.Background(), env.user.ID))
	w = env.request(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "jane@acme.io", Password: "correct-horse"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "inactive")

	attempts, _ := env.repos.LoginAttempts.ListForUser(context.Background(), env.user.ID, 10)
	require.Len(t, attempts, 2)
	assert.Equal(t, "account_inactive", attempts[0].FailureType)
	assert.Equal(t, "wrong_password", attempts[1].FailureType)
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		w := env.request(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "jane@acme.io", Password: "bad"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := env.request(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "jane@acme.io", Password: "correct-horse"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	env := newTestEnv(t)
	resp := env.login(t)

	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/api/auth/me", resp.Token, nil).Code)

	w := env.request(http.MethodPost, "/api/auth/logout", resp.Token, LogoutRequest{RefreshToken: resp.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusUnauthorized, env.request(http.MethodGet, "/api/auth/me", resp.Token, nil).Code)

	w = env.request(http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	resp := env.login(t)

	w := env.request(http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: resp.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out loginEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotEmpty(t, out.Data.Token)

	w = env.request(http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "used refresh tokens are revoked")

	w = env.request(http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: resp.Token})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "access tokens cannot refresh")
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	resp := env.login(t)

	w := env.request(http.MethodPost, "/api/auth/change-password", resp.Token, ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "new-password-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.request(http.MethodPost, "/api/auth/change-password", resp.Token, ChangePasswordRequest{CurrentPassword: "correct-horse", NewPassword: "new-password-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "jane@acme.io", Password: "new-password-1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginHistory(t *testing.T) {
	env := newTestEnv(t)
	resp := env.login(t)

	w := env.request(http.MethodGet, "/api/auth/login-history", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"successful":true`)
}
