package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentdesk-backend/shared/database/models"
)

// MemoryCache is an in-process stand-in for CacheManager. It backs tests and
// services started without Redis.
type MemoryCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	preferred map[uuid.UUID]memoryEntry
	blacklist map[string]time.Time
}

type memoryEntry struct {
	agent     models.Agent
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:       ttl,
		now:       time.Now,
		preferred: make(map[uuid.UUID]memoryEntry),
		blacklist: make(map[string]time.Time),
	}
}

func (m *MemoryCache) GetPreferredAgent(_ context.Context, userID uuid.UUID) (*models.Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.preferred[userID]
	if !ok {
		return nil, false
	}
	if m.now().After(entry.expiresAt) {
		delete(m.preferred, userID)
		return nil, false
	}
	agent := entry.agent
	return &agent, true
}

func (m *MemoryCache) SetPreferredAgent(_ context.Context, userID uuid.UUID, agent *models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferred[userID] = memoryEntry{agent: *agent, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryCache) InvalidatePreferredAgent(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.preferred, userID)
	return nil
}

func (m *MemoryCache) InvalidateAllPreferredAgents(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferred = make(map[uuid.UUID]memoryEntry)
	return nil
}

func (m *MemoryCache) Blacklist(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklist[BlacklistKey(token)] = m.now().Add(ttl)
	return nil
}

func (m *MemoryCache) IsBlacklisted(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.blacklist[BlacklistKey(token)]
	return ok && m.now().Before(until), nil
}
