package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, 250*time.Millisecond), mr
}

func TestGet_MissingKey(t *testing.T) {
	s, _ := setupStore(t)

	val, found, err := s.Get(context.Background(), "quota:nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, val)
}

func TestSetIfAbsent_CreatesOnce(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	created, err := s.SetIfAbsent(ctx, "quota:u1", 0, time.Hour)
	require.NoError(t, err)
	assert.True(t, created)

	// Second writer must not clobber the record or its TTL.
	mr.FastForward(30 * time.Minute)
	created, err = s.SetIfAbsent(ctx, "quota:u1", 99, time.Hour)
	require.NoError(t, err)
	assert.False(t, created)

	val, found, err := s.Get(ctx, "quota:u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(0), val)

	ttl, err := s.TTL(ctx, "quota:u1")
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 30*time.Minute)
}

func TestIncrBy_CreatesWithTTL(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	val, err := s.IncrBy(ctx, "ratelimit:c1", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)

	ttl, err := s.TTL(ctx, "ratelimit:c1")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestIncrBy_DoesNotResetTTLOnExistingKey(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	_, err := s.IncrBy(ctx, "ratelimit:c1", 1, time.Minute)
	require.NoError(t, err)

	mr.FastForward(40 * time.Second)

	_, err = s.IncrBy(ctx, "ratelimit:c1", 1, time.Minute)
	require.NoError(t, err)

	ttl, err := s.TTL(ctx, "ratelimit:c1")
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 20*time.Second)
}

func TestIncrBy_NegativeDeltaRollsBack(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, err := s.IncrBy(ctx, "quota:u1:consumed", 3, time.Hour)
	require.NoError(t, err)

	val, err := s.IncrBy(ctx, "quota:u1:consumed", -1, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)
}

func TestTTL_ExpiredKeyBehavesAsNew(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	_, err := s.IncrBy(ctx, "quota:u1:consumed", 5, time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, found, err := s.Get(ctx, "quota:u1:consumed")
	require.NoError(t, err)
	assert.False(t, found)

	val, err := s.IncrBy(ctx, "quota:u1:consumed", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)
}

func TestDel_RemovesKey(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, err := s.IncrBy(ctx, "quota:u1:consumed", 1, time.Hour)
	require.NoError(t, err)

	require.NoError(t, s.Del(ctx, "quota:u1:consumed"))

	_, found, err := s.Get(ctx, "quota:u1:consumed")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOperations_UnavailableStore(t *testing.T) {
	s, mr := setupStore(t)
	mr.Close()
	ctx := context.Background()

	_, _, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = s.SetIfAbsent(ctx, "k", 0, time.Hour)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = s.IncrBy(ctx, "k", 1, time.Hour)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = s.TTL(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.ErrorIs(t, s.Del(ctx, "k"), ErrUnavailable)
}
