package statecache

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Memory is an in-process Store backed by a map and an injectable clock.
// It is the implementation used by tests (with clock.NewMock so TTL expiry
// is deterministic) and by single-process development runs.
type Memory struct {
	clk clock.Clock

	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value    []byte
	deadline time.Time
}

// NewMemory returns an empty in-memory store reading time from clk.
func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.New()
	}
	return &Memory{clk: clk, entries: make(map[string]memoryEntry)}
}

// Get implements Store. Expired entries are removed on access.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.clk.Now().Before(e.deadline) {
		delete(m.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Put implements Store. A non-positive TTL makes the entry immediately
// invisible, which keeps expiry semantics uniform.
func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.entries[key] = memoryEntry{value: v, deadline: m.clk.Now().Add(ttl)}
	return nil
}

// Len reports the number of entries currently held, including entries whose
// TTL has elapsed but which have not yet been read.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
