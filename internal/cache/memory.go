package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const defaultMaxSize = 1000

type memoryEntry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// MemoryCache is the embedded size-bounded backend. Eviction is FIFO
// (oldest-inserted entry goes first), not LRU: reads do not reorder
// entries, and one entry is evicted before each insert at capacity.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	order   []string // insertion order, oldest first
	maxSize int

	hits   atomic.Uint64
	misses atomic.Uint64

	now func() time.Time
}

// NewMemory creates a memory cache bounded to maxSize entries.
func NewMemory(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, signalText, icpContext, modelID string) (json.RawMessage, bool) {
	key := Key(signalText, icpContext, modelID)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	if m.now().After(entry.expiresAt) {
		m.remove(key)
		m.misses.Add(1)
		return nil, false
	}

	m.hits.Add(1)
	return entry.value, true
}

func (m *MemoryCache) Set(_ context.Context, signalText string, value json.RawMessage, icpContext, modelID string, ttl time.Duration) {
	key := Key(signalText, icpContext, modelID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxSize {
		oldest := m.order[0]
		m.remove(oldest)
		zap.L().Debug("cache: evicted oldest entry", zap.String("key", oldest[:24]))
	}

	if _, exists := m.entries[key]; !exists {
		m.order = append(m.order, key)
	}
	m.entries[key] = memoryEntry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
}

func (m *MemoryCache) Invalidate(_ context.Context, signalText, icpContext, modelID string) {
	key := Key(signalText, icpContext, modelID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(key)
}

func (m *MemoryCache) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	m.order = nil
	return nil
}

func (m *MemoryCache) Stats() Stats {
	m.mu.Lock()
	size := len(m.entries)
	m.mu.Unlock()

	return Stats{
		Backend: "memory",
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Size:    size,
		MaxSize: m.maxSize,
	}
}

func (m *MemoryCache) Close() error { return nil }

// remove deletes key from both the map and the insertion-order queue.
// Callers must hold mu.
func (m *MemoryCache) remove(key string) {
	if _, ok := m.entries[key]; !ok {
		return
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
