package cache

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/assetflow/internal/domain"
)

type memoryEntry struct {
	snap      domain.MarketSnapshot
	expiresAt time.Time
}

// Memory is an in-process Cache guarded by a RWMutex.
type Memory struct {
	mu      sync.RWMutex
	clock   Clock
	entries map[string]memoryEntry
}

// NewMemory creates an in-process cache. A nil clock uses the wall clock.
func NewMemory(clock Clock) *Memory {
	if clock == nil {
		clock = SystemClock
	}
	return &Memory{
		clock:   clock,
		entries: make(map[string]memoryEntry),
	}
}

// Get returns the entry if present and not expired.
func (m *Memory) Get(_ context.Context, key string) (domain.MarketSnapshot, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return domain.MarketSnapshot{}, false
	}
	if !m.clock.Now().Before(e.expiresAt) {
		m.mu.Lock()
		// Re-check: a concurrent Put may have refreshed the entry
		if cur, ok := m.entries[key]; ok && !m.clock.Now().Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return domain.MarketSnapshot{}, false
	}
	return e.snap, true
}

// Put stores snap for ttl. A non-positive ttl is ignored.
func (m *Memory) Put(_ context.Context, key string, snap domain.MarketSnapshot, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{snap: snap, expiresAt: m.clock.Now().Add(ttl)}
	m.mu.Unlock()
}

// Invalidate drops every entry.
func (m *Memory) Invalidate(_ context.Context) {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
