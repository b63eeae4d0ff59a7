package counter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"fleet-control-service/internal/domain"
)

func newRedisStore(t *testing.T) (*RedisCounterStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := NewRedisCounterStore(rdb, WithRetryBudget(1, time.Millisecond))
	return store, mr
}

func TestRedisCounterIncrement(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		count, err := store.Incr(ctx, "activation:10.0.0.1", 15*time.Second)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if count != want {
			t.Fatalf("count = %d, want %d", count, want)
		}
	}

	// Other keys count independently.
	count, err := store.Incr(ctx, "activation:10.0.0.2", 15*time.Second)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestRedisCounterWindowExpires(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	if _, err := store.Incr(ctx, "k", 15*time.Second); err != nil {
		t.Fatalf("incr: %v", err)
	}
	if _, err := store.Incr(ctx, "k", 15*time.Second); err != nil {
		t.Fatalf("incr: %v", err)
	}

	mr.FastForward(16 * time.Second)

	count, err := store.Incr(ctx, "k", 15*time.Second)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if count != 1 {
		t.Fatalf("count after expiry = %d, want 1", count)
	}
}

func TestRedisCounterKeyPrefix(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	if _, err := store.Incr(ctx, "k", time.Minute); err != nil {
		t.Fatalf("incr: %v", err)
	}
	if !mr.Exists("ratelimit:k") {
		t.Fatalf("expected prefixed key, got %v", mr.Keys())
	}
}

func TestRedisCounterUnavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	mr.Close()

	_, err := store.Incr(ctx, "k", time.Second)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestRedisCounterNotConfigured(t *testing.T) {
	var store *RedisCounterStore
	if _, err := store.Incr(context.Background(), "k", time.Second); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}
