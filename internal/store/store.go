// Package store provides the atomic counter primitives every quota and
// rate-limit decision is built on. All concurrency safety is delegated to
// Redis single-key atomic commands; nothing here takes in-process locks.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lingora-app/lingora/internal/metrics"
)

// ErrUnavailable reports that the backing store could not be reached within
// the operation timeout. Callers decide fail-open vs fail-closed; no
// operation that returns it has left a partial effect behind.
var ErrUnavailable = errors.New("quota store unavailable")

// Store is the shared key-value surface with expiry. Implementations must
// guarantee that IncrBy is atomic with respect to concurrent IncrBy and
// SetIfAbsent calls on the same key.
type Store interface {
	// Get returns the counter value and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)

	// SetIfAbsent creates the key only if it does not exist, fixing its
	// TTL at creation. Returns true if this call created the key.
	SetIfAbsent(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error)

	// IncrBy atomically adds delta (which may be negative) and returns
	// the resulting value. A key created by this call gets ttlIfCreated.
	IncrBy(ctx context.Context, key string, delta int64, ttlIfCreated time.Duration) (int64, error)

	// TTL returns the remaining lifetime of the key, or 0 if the key
	// does not exist or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Del removes a key. Administrative resets and tests only; steady
	// state relies on TTL expiry.
	Del(ctx context.Context, key string) error
}

// RedisStore implements Store on Redis. Every call is bounded by timeout so
// a slow or partitioned Redis degrades into ErrUnavailable instead of
// holding chat requests hostage.
type RedisStore struct {
	rdb     redis.Cmdable
	timeout time.Duration
}

func NewRedisStore(rdb redis.Cmdable, timeout time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, timeout: timeout}
}

func (s *RedisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	val, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, s.unavailable("get", err)
	}
	return val, true, nil
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	created, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, s.unavailable("setnx", err)
	}
	return created, nil
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64, ttlIfCreated time.Duration) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	pipe := s.rdb.Pipeline()
	incrCmd := pipe.IncrBy(ctx, key, delta)
	if ttlIfCreated > 0 {
		// EXPIRE NX only sets the TTL when the key has none, i.e. when
		// the INCRBY above just created it.
		pipe.ExpireNX(ctx, key, ttlIfCreated)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, s.unavailable("incrby", err)
	}
	return incrCmd.Val(), nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	d, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, s.unavailable("ttl", err)
	}
	// go-redis reports "no key" and "no expiry" as negative durations.
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return s.unavailable("del", err)
	}
	return nil
}

func (s *RedisStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RedisStore) unavailable(op string, err error) error {
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	return fmt.Errorf("%s %w: %v", op, ErrUnavailable, err)
}
