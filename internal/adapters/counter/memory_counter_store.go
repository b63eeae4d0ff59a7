package counter

import (
	"context"
	"sync"
	"time"
)

// MemoryCounterStore is a fixed-window in-process counter, used by tests and
// by single-process deployments that run without redis.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*memoryWindow

	// now is swappable in tests.
	now func() time.Time
}

type memoryWindow struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		entries: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

// SetNow overrides the clock; tests advance it to expire windows.
func (s *MemoryCounterStore) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || !e.expiresAt.After(now) {
		e = &memoryWindow{expiresAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	return e.count, nil
}

// Cleanup drops expired windows; call periodically on long-lived stores.
func (s *MemoryCounterStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, k)
		}
	}
}
