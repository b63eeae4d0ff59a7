package ports

import (
	"context"
	"time"
)

// Port: the shared ephemeral counter behind the rate limiter.
type CounterStore interface {
	// Incr atomically increments key and, when this is the first increment
	// of the window, starts the key's expiry in the same store round trip.
	// Returns the post-increment count.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}
