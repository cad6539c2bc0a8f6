package cache

import (
	"context"
	"sync"
	"time"

	"bullionrates/internal/feed"
)

// entry stores cached observations for a single key with expiry.
type entry struct {
	expiresAt time.Time
	obs       []feed.Observation
}

// MemoryStore is an in-process Store. MaxItems caps the number of keys;
// expired keys are evicted first, then arbitrary ones.
type MemoryStore struct {
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

func NewMemoryStore(maxItems int) *MemoryStore {
	return &MemoryStore{MaxItems: maxItems, items: map[string]entry{}, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]feed.Observation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.items[key]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.obs, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, obs []feed.Observation, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string]entry{}
	}
	now := m.now()
	m.items[key] = entry{expiresAt: now.Add(ttl), obs: obs}

	if m.MaxItems > 0 && len(m.items) > m.MaxItems {
		for k, v := range m.items {
			if len(m.items) <= m.MaxItems {
				break
			}
			if !now.Before(v.expiresAt) {
				delete(m.items, k)
			}
		}
		for k := range m.items {
			if len(m.items) <= m.MaxItems {
				break
			}
			if k != key {
				delete(m.items, k)
			}
		}
	}
	return nil
}

// Len returns the number of stored keys, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
