package credential

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]memoryEntry
}

// NewMemoryStore builds an empty store. A nil clock means wall time.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.WallClock
	}
	return &MemoryStore{clock: clk, entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Put(_ context.Context, name, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl <= 0 {
		delete(m.entries, name)
		return nil
	}
	m.entries[name] = memoryEntry{value: value, expiresAt: m.clock.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[name]
	if !ok {
		return "", ErrAbsent
	}
	if !m.clock.Now().Before(entry.expiresAt) {
		delete(m.entries, name)
		return "", ErrAbsent
	}
	return entry.value, nil
}

func (m *MemoryStore) Clear(_ context.Context, names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		delete(m.entries, name)
	}
	return nil
}

// Len counts live entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	n := 0
	for _, entry := range m.entries {
		if now.Before(entry.expiresAt) {
			n++
		}
	}
	return n
}
