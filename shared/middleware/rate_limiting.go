package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"agentdesk-backend/shared/config"
)

// RateLimit - Rate limit info for one key
type RateLimit struct {
	Count      int
	ResetAt    time.Time
	LastAccess time.Time
	Blocked    bool
	BlockUntil time.Time
}

// RateLimiter - Fixed window limiter with a block period after the limit is hit
type RateLimiter struct {
	store map[string]*RateLimit
	mutex sync.Mutex
	now   func() time.Time
}

// RateLimitConfig - Rate limiter configuration
type RateLimitConfig struct {
	MaxRequests   int
	TimeWindow    time.Duration
	BlockDuration time.Duration
}

// GlobalRateLimitConfig reads the per-IP gateway limits.
func GlobalRateLimitConfig(cfg *config.Config) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:   cfg.GetRateLimitMaxRequests(),
		TimeWindow:    cfg.GetRateLimitTimeWindow(),
		BlockDuration: cfg.GetRateLimitBlockDuration(),
	}
}

// LoginRateLimitConfig reads the login attempt limits.
func LoginRateLimitConfig(cfg *config.Config) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:   cfg.GetLoginRateLimitMaxAttempts(),
		TimeWindow:    cfg.GetLoginRateLimitWindow(),
		BlockDuration: cfg.GetLoginRateLimitBlockDuration(),
	}
}

// NewRateLimiter - Creates a new RateLimiter instance
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		store: make(map[string]*RateLimit),
		now:   time.Now,
	}
}

// RunCleanup drops idle keys every interval until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup(24 * time.Hour)
		}
	}
}

func (rl *RateLimiter) cleanup(idle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, limit := range rl.store {
		if now.Sub(limit.LastAccess) > idle && !(limit.Blocked && now.Before(limit.BlockUntil)) {
			delete(rl.store, key)
		}
	}
}

// Allow records a hit for key and reports whether it is within the limit.
// The second value is how long the caller should wait when it is not.
func (rl *RateLimiter) Allow(key string, config RateLimitConfig) (bool, time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	limit, exists := rl.store[key]

	if !exists {
		rl.store[key] = &RateLimit{
			Count:      1,
			ResetAt:    now.Add(config.TimeWindow),
			LastAccess: now,
		}
		return true, 0
	}

	limit.LastAccess = now

	if limit.Blocked {
		if now.After(limit.BlockUntil) {
			limit.Blocked = false
			limit.Count = 1
			limit.ResetAt = now.Add(config.TimeWindow)
			return true, 0
		}
		return false, limit.BlockUntil.Sub(now)
	}

	if now.After(limit.ResetAt) {
		limit.Count = 1
		limit.ResetAt = now.Add(config.TimeWindow)
		return true, 0
	}

	if limit.Count >= config.MaxRequests {
		limit.Blocked = true
		limit.BlockUntil = now.Add(config.BlockDuration)
		return false, config.BlockDuration
	}

	limit.Count++
	return true, 0
}

// Reset forgets a key, for example after a successful login.
func (rl *RateLimiter) Reset(key string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	delete(rl.store, key)
}

// RateLimitMiddleware - Per client IP rate limiting
func (rl *RateLimiter) RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, retryAfter := rl.Allow(c.ClientIP(), config); !ok {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too many requests",
				"message": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
