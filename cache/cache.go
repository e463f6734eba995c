package cache

import (
	"sync"
	"time"
)

// Resource kinds the views are cached under.
const (
	KindOrders  = "orders"
	KindTables  = "tables"
	KindKitchen = "kitchen"
)

// Invalidator is the port the core calls after every committed mutation.
// The contract is "invalidate after every commit", never conditional.
type Invalidator interface {
	Invalidate(kind string)
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// MemoryCache is the default in-process view cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry)}
}

func (m *MemoryCache) Get(kind string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[kind]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (m *MemoryCache) Set(kind string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[kind] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (m *MemoryCache) Invalidate(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, kind)
}
