package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/config"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
	ErrInvalidSubject = errors.New("invalid user ID in token")
)

type Claims struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Role           string `json:"role,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	ShopID         string `json:"shop_id,omitempty"`
	TokenType      string `json:"token_type"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into the caller identity.
func (c *Claims) Principal() (access.Principal, error) {
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return access.Principal{}, ErrInvalidSubject
	}

	p := access.Principal{
		UserID: userID,
		Email:  c.Email,
		Role:   c.Role,
	}
	if id, err := uuid.Parse(c.OrganizationID); err == nil {
		p.OrganizationID = &id
	}
	if id, err := uuid.Parse(c.ShopID); err == nil {
		p.ShopID = &id
	}
	return p, nil
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	if secret == "" {
		secret = "fallback-secret-key-for-development"
	}
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// NewTokenManagerFromConfig reads secret and lifetimes from config.
func NewTokenManagerFromConfig(cfg *config.Config) *TokenManager {
	return NewTokenManager(cfg.JWTSecret, GetJWTExpireDuration(cfg), GetJWTRefreshExpireDuration(cfg))
}

// GetJWTExpireDuration gets JWT expiration duration from config
func GetJWTExpireDuration(cfg *config.Config) time.Duration {
	hours, err := strconv.Atoi(cfg.JWTExpireHours)
	if err != nil || hours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(hours) * time.Hour
}

// GetJWTRefreshExpireDuration gets JWT refresh token expiration duration from config
func GetJWTRefreshExpireDuration(cfg *config.Config) time.Duration {
	days, err := strconv.Atoi(cfg.JWTRefreshExpireDays)
	if err != nil || days <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(days) * 24 * time.Hour
}

func (tm *TokenManager) AccessTTL() time.Duration {
	return tm.accessTTL
}

// GenerateAccessToken issues a token carrying the full principal.
func (tm *TokenManager) GenerateAccessToken(p access.Principal) (string, time.Time, error) {
	claims := Claims{
		UserID:    p.UserID.String(),
		Email:     p.Email,
		Role:      p.Role,
		TokenType: TokenTypeAccess,
	}
	if p.OrganizationID != nil {
		claims.OrganizationID = p.OrganizationID.String()
	}
	if p.ShopID != nil {
		claims.ShopID = p.ShopID.String()
	}
	return tm.sign(claims, tm.accessTTL)
}

// GenerateRefreshToken issues a token that only identifies the user.
func (tm *TokenManager) GenerateRefreshToken(userID uuid.UUID, email string) (string, time.Time, error) {
	claims := Claims{
		UserID:    userID.String(),
		Email:     email,
		TokenType: TokenTypeRefresh,
	}
	return tm.sign(claims, tm.refreshTTL)
}

func (tm *TokenManager) sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken verifies signature, expiry and token type.
func (tm *TokenManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	return tm.validate(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken verifies a refresh token.
func (tm *TokenManager) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return tm.validate(tokenString, TokenTypeRefresh)
}

func (tm *TokenManager) validate(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// RemainingLifetime is how long a validated token stays valid.
func (tm *TokenManager) RemainingLifetime(claims *Claims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Sub(tm.now())
}
