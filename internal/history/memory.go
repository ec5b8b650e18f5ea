package history

import (
	"context"
	"sync"
)

// DefaultCapacity is the number of entries MemoryHistory keeps.
const DefaultCapacity = 1000

// MemoryHistory keeps the most recent entries in a fixed-size ring.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewMemoryHistory returns a ring holding up to capacity entries.
func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryHistory{entries: make([]Entry, capacity)}
}

// Record implements Store.
func (m *MemoryHistory) Record(_ context.Context, e Entry) error {
	e = prepare(e)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[m.next] = e
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Recent implements Store.
func (m *MemoryHistory) Recent(_ context.Context, limit int) ([]Entry, error) {
	limit = clampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.entries)
	}
	limit = min(limit, n)

	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		out = append(out, m.entries[idx])
	}
	return out, nil
}

// Len returns the number of entries held.
func (m *MemoryHistory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.full {
		return len(m.entries)
	}
	return m.next
}
