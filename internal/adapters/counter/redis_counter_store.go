package counter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-control-service/internal/domain"
)

// Increment and start the expiry window in a single atomic round trip.
// Splitting INCR and EXPIRE into two calls risks a counter that never
// expires if the process dies between them.
var incrWithWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisCounterStore backs the rate limiter with a shared redis counter.
type RedisCounterStore struct {
	rdb    *redis.Client
	prefix string

	maxAttempts int
	baseBackoff time.Duration
}

type RedisCounterOption func(*RedisCounterStore)

func WithCounterPrefix(prefix string) RedisCounterOption {
	return func(s *RedisCounterStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithRetryBudget(attempts int, baseBackoff time.Duration) RedisCounterOption {
	return func(s *RedisCounterStore) {
		s.maxAttempts = attempts
		s.baseBackoff = baseBackoff
	}
}

func NewRedisCounterStore(rdb *redis.Client, opts ...RedisCounterOption) *RedisCounterStore {
	s := &RedisCounterStore{
		rdb:         rdb,
		prefix:      "ratelimit",
		maxAttempts: 3,
		baseBackoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if s == nil || s.rdb == nil {
		return 0, domain.StoreUnavailablef("counter store not configured")
	}

	seconds := int64(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	fullKey := s.prefix + ":" + key

	backoff := s.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		count, err := incrWithWindow.Run(ctx, s.rdb, []string{fullKey}, seconds).Int64()
		if err == nil {
			return count, nil
		}
		lastErr = err

		if attempt == s.maxAttempts || errors.Is(err, context.Canceled) {
			break
		}

		// Capped backoff before the next attempt.
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
		if backoff *= 2; backoff > 200*time.Millisecond {
			backoff = 200 * time.Millisecond
		}
	}

	return 0, fmt.Errorf("counter incr %q: %w: %w", key, domain.ErrStoreUnavailable, lastErr)
}
