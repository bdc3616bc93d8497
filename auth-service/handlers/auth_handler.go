package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/middleware"
	"agentdesk-backend/shared/repository"
	"agentdesk-backend/shared/utils/auth"
	"agentdesk-backend/shared/utils/response"
)

const loginHistoryLimit = 20

// TokenStore revokes tokens until they expire.
type TokenStore interface {
	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

type AuthHandler struct {
	users    repository.UserRepository
	attempts repository.LoginAttemptRepository
	tokens   *auth.TokenManager
	revoked  TokenStore
	limiter  *middleware.RateLimiter
	loginCfg middleware.RateLimitConfig
	log      *zap.Logger
}

func NewAuthHandler(repos repository.Repositories, tokens *auth.TokenManager, revoked TokenStore, limiter *middleware.RateLimiter, loginCfg middleware.RateLimitConfig, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		users:    repos.Users,
		attempts: repos.LoginAttempts,
		tokens:   tokens,
		revoked:  revoked,
		limiter:  limiter,
		loginCfg: loginCfg,
		log:      log,
	}
}

// Login Request/Response structs
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"admin@agentdesk.local"`
	Password string `json:"password" binding:"required" example:"admin123"`
}

type LoginResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	User         UserInfo  `json:"user"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type UserInfo struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Role           string     `json:"role"`
	OrganizationID *uuid.UUID `json:"organization_id"`
	ShopID         *uuid.UUID `json:"shop_id"`
	Status         string     `json:"status"`
	LastLoginAt    *time.Time `json:"last_login_at"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

func userInfo(u *models.User) UserInfo {
	return UserInfo{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
		ShopID:         u.ShopID,
		Status:         u.Status,
		LastLoginAt:    u.LastLoginAt,
	}
}

func principalOf(u *models.User) access.Principal {
	return access.Principal{
		UserID:         u.ID,
		Email:          u.Email,
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
		ShopID:         u.ShopID,
	}
}

// POST /api/auth/login
// @Summary User login
// @Description Authenticate a user and return JWT tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param login body LoginRequest true "Login credentials"
// @Success 200 {object} handlers.LoginResponse "Successful login"
// @Failure 400 {object} map[string]string "Invalid request format"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Failure 429 {object} map[string]string "Too many login attempts"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	clientIP := c.ClientIP()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	limitKey := "login:" + clientIP + ":" + email

	if ok, _ := h.limiter.Allow(limitKey, h.loginCfg); !ok {
		response.Error(c, http.StatusTooManyRequests, "Too many login attempts", "Too many login attempts. Please try again later.")
		return
	}

	user, err := h.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			response.ServiceError(c, err, "User")
			return
		}
		h.recordAttempt(c, nil, email, false, "user_not_found")
		response.Error(c, http.StatusUnauthorized, "Invalid credentials", "Email or password is incorrect")
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.Password) {
		h.recordAttempt(c, &user.ID, email, false, "wrong_password")
		response.Error(c, http.StatusUnauthorized, "Invalid credentials", "Email or password is incorrect")
		return
	}

	if user.Status != models.StatusActive {
		h.recordAttempt(c, &user.ID, email, false, "account_inactive")
		response.Error(c, http.StatusUnauthorized, "Account is inactive", "This account has been deactivated")
		return
	}

	resp, err := h.issueTokens(user)
	if err != nil {
		h.log.Error("token generation failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Could not generate token", err.Error())
		return
	}

	now := time.Now().UTC()
	if err := h.users.TouchLogin(ctx, user.ID, now); err != nil {
		h.log.Warn("failed to update last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	resp.User.LastLoginAt = &now

	h.recordAttempt(c, &user.ID, email, true, "")
	h.limiter.Reset(limitKey)
	h.log.Info("user logged in", zap.String("user_id", user.ID.String()), zap.String("ip", clientIP))

	response.OK(c, resp)
}

// POST /api/auth/refresh
// @Summary Refresh tokens
// @Description Exchange a refresh token for a new token pair. The old refresh token is revoked.
// @Tags auth
// @Accept json
// @Produce json
// @Param refresh body RefreshRequest true "Refresh token"
// @Success 200 {object} handlers.LoginResponse
// @Failure 401 {object} map[string]string
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	claims, err := h.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "Invalid refresh token", "Refresh token is invalid or expired")
		return
	}

	revoked, err := h.revoked.IsBlacklisted(ctx, req.RefreshToken)
	if err != nil {
		response.ServiceError(c, err, "Token")
		return
	}
	if revoked {
		response.Error(c, http.StatusUnauthorized, "Invalid refresh token", "Refresh token has been revoked")
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "Invalid refresh token", "Invalid user ID in token")
		return
	}

	user, err := h.users.Get(ctx, userID)
	if err != nil || user.Status != models.StatusActive {
		response.Error(c, http.StatusUnauthorized, "Invalid refresh token", "User not found or inactive")
		return
	}

	resp, err := h.issueTokens(user)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Could not generate token", err.Error())
		return
	}

	if err := h.revoked.Blacklist(ctx, req.RefreshToken, h.tokens.RemainingLifetime(claims)); err != nil {
		h.log.Warn("failed to revoke used refresh token", zap.Error(err))
	}

	response.OK(c, resp)
}

// POST /api/auth/logout
// @Summary Logout
// @Description Revoke the current access token and, when given, the refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param logout body LogoutRequest false "Refresh token to revoke"
// @Success 200 {object} map[string]interface{}
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	claims, _ := middleware.GetClaims(c)

	if err := h.revoked.Blacklist(ctx, middleware.GetAccessToken(c), h.tokens.RemainingLifetime(claims)); err != nil {
		response.ServiceError(c, err, "Token")
		return
	}

	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		if refreshClaims, err := h.tokens.ValidateRefreshToken(req.RefreshToken); err == nil {
			if err := h.revoked.Blacklist(ctx, req.RefreshToken, h.tokens.RemainingLifetime(refreshClaims)); err != nil {
				h.log.Warn("failed to revoke refresh token", zap.Error(err))
			}
		}
	}

	response.Message(c, "Logged out successfully", nil)
}

// GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handlers.UserInfo
// @Failure 404 {object} map[string]string
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)

	user, err := h.users.Get(c.Request.Context(), p.UserID)
	if err != nil {
		response.ServiceError(c, err, "User")
		return
	}

	response.OK(c, userInfo(user))
}

// POST /api/auth/change-password
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ChangePasswordRequest true "Passwords"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	p, _ := middleware.GetPrincipal(c)

	user, err := h.users.Get(ctx, p.UserID)
	if err != nil {
		response.ServiceError(c, err, "User")
		return
	}

	if !auth.CheckPasswordHash(req.CurrentPassword, user.Password) {
		response.BadRequest(c, "Current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Could not hash password", err.Error())
		return
	}
	user.Password = hash

	if err := h.users.Update(ctx, user); err != nil {
		response.ServiceError(c, err, "User")
		return
	}

	response.Message(c, "Password changed successfully", nil)
}

// GET /api/auth/login-history
// @Summary Login history
// @Description Latest login attempts of the current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.LoginAttempt
// @Router /auth/login-history [get]
func (h *AuthHandler) LoginHistory(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)

	attempts, err := h.attempts.ListForUser(c.Request.Context(), p.UserID, loginHistoryLimit)
	if err != nil {
		response.ServiceError(c, err, "Login history")
		return
	}

	response.OK(c, attempts)
}

func (h *AuthHandler) issueTokens(user *models.User) (*LoginResponse, error) {
	token, expiresAt, err := h.tokens.GenerateAccessToken(principalOf(user))
	if err != nil {
		return nil, err
	}

	refreshToken, _, err := h.tokens.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         userInfo(user),
	}, nil
}

func (h *AuthHandler) recordAttempt(c *gin.Context, userID *uuid.UUID, email string, successful bool, failureType string) {
	attempt := &models.LoginAttempt{
		UserID:      userID,
		Email:       email,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.GetHeader("User-Agent"),
		Successful:  successful,
		FailureType: failureType,
	}
	if err := h.attempts.Record(c.Request.Context(), attempt); err != nil {
		h.log.Warn("failed to record login attempt", zap.String("email", email), zap.Error(err))
	}
}
