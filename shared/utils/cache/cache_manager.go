package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"agentdesk-backend/shared/config"
	"agentdesk-backend/shared/database/models"
)

// CacheManager wraps the Redis client used for the preferred agent cache and
// the access token blacklist.
type CacheManager struct {
	client       *redis.Client
	preferredTTL time.Duration
}

const (
	preferredAgentPrefix = "agent:preferred:"
	blacklistPrefix      = "auth:blacklist:"
)

// NewCacheManager connects to Redis using config values.
func NewCacheManager(ctx context.Context, cfg *config.Config) (*CacheManager, error) {
	redisDB, err := strconv.Atoi(cfg.RedisDB)
	if err != nil {
		zap.L().Warn("invalid Redis DB number, using 0", zap.String("redis_db", cfg.RedisDB))
		redisDB = 0
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       redisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	zap.L().Info("redis cache manager initialized",
		zap.String("addr", client.Options().Addr),
		zap.Int("db", redisDB),
	)

	return NewCacheManagerWithClient(client, cfg.AgentCacheTTL()), nil
}

// NewCacheManagerWithClient wraps an existing client.
func NewCacheManagerWithClient(client *redis.Client, preferredTTL time.Duration) *CacheManager {
	return &CacheManager{client: client, preferredTTL: preferredTTL}
}

// PreferredAgentKey is the cache key of a user's resolved agent.
func PreferredAgentKey(userID uuid.UUID) string {
	return preferredAgentPrefix + userID.String()
}

// BlacklistKey hashes the token so raw JWTs never land in Redis.
func BlacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return blacklistPrefix + hex.EncodeToString(sum[:])
}

// GetPreferredAgent returns the cached agent of a user.
func (cm *CacheManager) GetPreferredAgent(ctx context.Context, userID uuid.UUID) (*models.Agent, bool) {
	key := PreferredAgentKey(userID)

	result, err := cm.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var agent models.Agent
	if err := json.Unmarshal(result, &agent); err != nil {
		zap.L().Warn("failed to unmarshal cached agent", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return &agent, true
}

// SetPreferredAgent caches a resolved agent with the flat preferred agent TTL.
func (cm *CacheManager) SetPreferredAgent(ctx context.Context, userID uuid.UUID, agent *models.Agent) error {
	data, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := cm.client.Set(ctx, PreferredAgentKey(userID), data, cm.preferredTTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// InvalidatePreferredAgent drops one user's cached agent.
func (cm *CacheManager) InvalidatePreferredAgent(ctx context.Context, userID uuid.UUID) error {
	return cm.client.Del(ctx, PreferredAgentKey(userID)).Err()
}

// InvalidateAllPreferredAgents drops every cached agent. Called on agent mutations.
func (cm *CacheManager) InvalidateAllPreferredAgents(ctx context.Context) error {
	return cm.invalidateByPattern(ctx, preferredAgentPrefix+"*")
}

// Blacklist stores a token until it would have expired anyway.
func (cm *CacheManager) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return cm.client.Set(ctx, BlacklistKey(token), "1", ttl).Err()
}

// IsBlacklisted reports whether a token was revoked by logout.
func (cm *CacheManager) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := cm.client.Exists(ctx, BlacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// invalidateByPattern invalidates cache entries matching a pattern
func (cm *CacheManager) invalidateByPattern(ctx context.Context, pattern string) error {
	iter := cm.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	if len(keys) > 0 {
		if err := cm.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete keys: %w", err)
		}
		zap.L().Debug("cache invalidated", zap.Int("keys", len(keys)), zap.String("pattern", pattern))
	}

	return nil
}

// Ping checks the Redis connection.
func (cm *CacheManager) Ping(ctx context.Context) error {
	return cm.client.Ping(ctx).Err()
}

// Close closes the cache manager connection
func (cm *CacheManager) Close() error {
	if cm != nil && cm.client != nil {
		return cm.client.Close()
	}
	return nil
}
