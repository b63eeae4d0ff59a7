package ratelimit

import (
	"context"
	"log"
	"time"

	"go.uber.org/atomic"

	"fleet-control-service/internal/ports"
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed bool
	// RetryAfter is the recommended wait before the next attempt when the
	// request is denied.
	RetryAfter time.Duration
}

// Guard throttles a scope+client pair against a shared window counter.
// Throttling is defense in depth, not a correctness requirement: any store
// failure is absorbed and the request proceeds (fail-open), after the store's
// own small retry budget is exhausted.
type Guard struct {
	Store ports.CounterStore

	allowed atomic.Int64
	denied  atomic.Int64
}

func NewGuard(store ports.CounterStore) *Guard {
	return &Guard{Store: store}
}

// Check increments the window counter for scope:clientKey and compares the
// post-increment count against maxAttempts.
func (g *Guard) Check(ctx context.Context, scope, clientKey string, window time.Duration, maxAttempts int64) Decision {
	if g == nil || g.Store == nil {
		return Decision{Allowed: true}
	}

	count, err := g.Store.Incr(ctx, scope+":"+clientKey, window)
	if err != nil {
		log.Printf("rate limit store error: scope=%s err=%v (failing open)", scope, err)
		g.allowed.Inc()
		return Decision{Allowed: true}
	}

	if count > maxAttempts {
		g.denied.Inc()
		return Decision{Allowed: false, RetryAfter: window}
	}

	g.allowed.Inc()
	return Decision{Allowed: true}
}

// Stats returns the totals of allowed and denied checks since start.
func (g *Guard) Stats() (allowed, denied int64) {
	return g.allowed.Load(), g.denied.Load()
}
