package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	rc, err := NewRedisClient(s.Host(), s.Port(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc, s
}

func TestAcquireLock_Exclusive(t *testing.T) {
	rc, s := setupTestRedis(t)
	ctx := context.Background()

	lock, err := rc.AcquireLock(ctx, "lock:rebuild:pets", time.Minute)
	require.NoError(t, err)
	assert.True(t, s.Exists("lock:rebuild:pets"))
	assert.Equal(t, time.Minute, s.TTL("lock:rebuild:pets"))

	_, err = rc.AcquireLock(ctx, "lock:rebuild:pets", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lock.Release(ctx))
	assert.False(t, s.Exists("lock:rebuild:pets"))

	again, err := rc.AcquireLock(ctx, "lock:rebuild:pets", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLockRelease_DoesNotFreeAnotherOwner(t *testing.T) {
	rc, s := setupTestRedis(t)
	ctx := context.Background()

	stale, err := rc.AcquireLock(ctx, "lock:k", time.Second)
	require.NoError(t, err)

	s.FastForward(2 * time.Second)
	fresh, err := rc.AcquireLock(ctx, "lock:k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, s.Exists("lock:k"), "stale release must not delete the new owner's key")

	require.NoError(t, fresh.Release(ctx))
	assert.False(t, s.Exists("lock:k"))
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	host, port := s.Host(), s.Port()
	s.Close()

	_, err := NewRedisClient(host, port, "")
	assert.Error(t, err)
}
