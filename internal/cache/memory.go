package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Expired entries are left in place and
// simply reported as misses; they are overwritten on the next Put.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry), now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, false
	}
	cp := make([]byte, len(e.payload))
	copy(cp, e.payload)
	return cp, true
}

func (m *Memory) Put(_ context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)

	m.mu.Lock()
	m.entries[key] = entry{payload: cp, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
