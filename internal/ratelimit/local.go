package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is a per-key token-bucket layer for deployments without a
// shared counter store. It caches one limiter per key and evicts idle
// entries periodically.
type LocalLimiter struct {
	mu           sync.Mutex
	entries      map[string]*localEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type localEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type LocalOption func(*LocalLimiter)

func WithIdleTTL(d time.Duration) LocalOption {
	return func(l *LocalLimiter) { l.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) LocalOption {
	return func(l *LocalLimiter) { l.cleanupEvery = d }
}

func NewLocalLimiter(rps float64, burst int, opts ...LocalOption) *LocalLimiter {
	l := &LocalLimiter{
		entries:      make(map[string]*localEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LocalLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	ent, ok := l.entries[key]
	if !ok {
		ent = &localEntry{lim: rate.NewLimiter(l.rps, l.burst)}
		l.entries[key] = ent
	}
	ent.lastSeen = now
	return ent.lim.Allow()
}

func (l *LocalLimiter) Cleanup() {
	cutoff := time.Now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// StartJanitor evicts idle keys until the context is cancelled.
func (l *LocalLimiter) StartJanitor(ctx context.Context) {
	if l.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(l.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}
