package statestore

import (
	"context"
	"sync"
	"time"

	"shoplink-shopify-layer/internal/ports"
)

var _ ports.StateTracker = (*MemoryTracker)(nil)

// MemoryTracker is an in-process StateTracker for single-instance deployments
// and tests. Entries expire after the configured TTL.
type MemoryTracker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryTracker) Save(_ context.Context, nonce string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	m.entries[nonce] = m.now().Add(m.ttl)
	return nil
}

func (m *MemoryTracker) Consume(_ context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[nonce]
	if !ok {
		return false, nil
	}
	delete(m.entries, nonce)
	if m.now().After(exp) {
		return false, nil
	}
	return true, nil
}

// sweep drops expired entries. Called under the lock from Save so the map
// cannot grow without bound under abandoned installs.
func (m *MemoryTracker) sweep() {
	now := m.now()
	for nonce, exp := range m.entries {
		if now.After(exp) {
			delete(m.entries, nonce)
		}
	}
}
