package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wakesched/internal/models"
	"wakesched/internal/store"
)

var (
	_ store.WakeupStore    = (*RedisWakeupStore)(nil)
	_ store.JobConfigStore = (*RedisJobConfigStore)(nil)
	_ store.JobLockStore   = (*RedisJobLockStore)(nil)
)

func TestRedisJobConfigStore_RejectsInvalidCron(t *testing.T) {
	s := NewRedisJobConfigStore(nil, nil)
	err := s.Upsert(context.Background(), models.JobConfig{ID: "job", URL: "http://a", CronExpression: "every day"})
	assert.ErrorContains(t, err, "invalid cron expression")
}

func TestRedisJobStores(t *testing.T) {
	wakeups := newTestStore(t)
	ctx := context.Background()

	configs := NewRedisJobConfigStore(wakeups.client, nil)
	locks := NewRedisJobLockStore(wakeups.client, nil)

	missing, err := configs.Find(ctx, "job")
	require.NoError(t, err)
	assert.Nil(t, missing)

	config := models.JobConfig{ID: "job", URL: "http://a", Timeout: 5000, CronExpression: "@hourly"}
	require.NoError(t, configs.Upsert(ctx, config))
	found, err := configs.Find(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, config, *found)

	all, err := configs.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]models.JobConfig{"job": config}, all)

	lock, err := locks.Find(ctx, "job")
	require.NoError(t, err)
	assert.False(t, lock.Locked)

	require.NoError(t, locks.Add(ctx, "job", 1_700_000_000_000))
	lock, err = locks.Find(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, models.JobLock{Locked: true, ExpiresAt: 1_700_000_000_000}, lock)

	require.NoError(t, locks.Delete(ctx, "job"))
	lockMap, err := locks.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, lockMap)
}

func TestRedisJobStores_DeleteAll(t *testing.T) {
	wakeups := newTestStore(t)
	ctx := context.Background()
	configs := NewRedisJobConfigStore(wakeups.client, nil)
	locks := NewRedisJobLockStore(wakeups.client, nil)

	require.NoError(t, configs.Upsert(ctx, models.JobConfig{ID: "a", URL: "http://a", CronExpression: "@hourly"}))
	require.NoError(t, configs.Upsert(ctx, models.JobConfig{ID: "b", URL: "http://b"}))
	require.NoError(t, locks.Add(ctx, "a", 10))

	require.NoError(t, configs.Delete(ctx, "b"))
	all, err := configs.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, configs.DeleteAll(ctx))
	require.NoError(t, locks.DeleteAll(ctx))

	all, err = configs.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	lockMap, err := locks.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, lockMap)
}
