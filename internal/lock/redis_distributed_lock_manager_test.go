package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) *redis.Client {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisDistributedLockManager_ExclusiveAcrossManagers(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()
	lockID := int64(1 << 20)

	first := NewRedisDistributedLockManager(client, 3*time.Second)
	second := NewRedisDistributedLockManager(client, 3*time.Second)

	ok, err := first.TryAcquire(ctx, lockID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.TryAcquire(ctx, lockID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx, lockID))

	ok, err = second.TryAcquire(ctx, lockID)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release(ctx, lockID))
}

func TestRedisDistributedLockManager_AcquireHonoursContext(t *testing.T) {
	client := newRedisClient(t)
	lockID := int64(1<<20 + 1)

	holder := NewRedisDistributedLockManager(client, 3*time.Second)
	require.NoError(t, holder.Acquire(context.Background(), lockID))
	defer holder.Release(context.Background(), lockID)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := NewRedisDistributedLockManager(client, 3*time.Second).Acquire(ctx, lockID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisDistributedLockManager_ReleaseUnknown(t *testing.T) {
	mgr := NewRedisDistributedLockManager(nil, time.Second)
	err := mgr.Release(context.Background(), 7)
	assert.ErrorContains(t, err, "not held")
}
