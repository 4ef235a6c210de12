package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wakesched/internal/constants"
	"wakesched/internal/mocks"
	"wakesched/internal/models"
	"wakesched/internal/models/config"
)

func newTestApp(t *testing.T, opts ...config.Option) (*App, stores, *mocks.MockDistributedLockManager) {
	t.Helper()
	cfg, err := config.NewSchedConfig("test-node", append([]config.Option{
		config.WithSecret("s3cret"),
		config.WithPostgresConfig(config.PostgresConfig{ConnectionUrl: "postgres://unused"}),
	}, opts...)...)
	require.NoError(t, err)

	s := stores{
		wakeups: mocks.NewMockWakeupStore(),
		configs: mocks.NewMockJobConfigStore(),
		locks:   mocks.NewMockJobLockStore(),
	}
	locks := mocks.NewMockDistributedLockManager()
	a := &App{Config: cfg}
	a.wire(s, locks)
	return a, s, locks
}

func TestWire_DispatchesThroughTheWholeChain(t *testing.T) {
	var secret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get(constants.SecretHeader)
		_, _ = w.Write([]byte(`{"ack": true}`))
	}))
	defer srv.Close()

	a, s, locks := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, s.wakeups.Upsert(ctx, models.Wakeup{ID: "w", DueAt: 1, CallbackURL: srv.URL}))

	report, err := a.Dispatcher.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, "s3cret", secret)
	assert.Equal(t, []int64{constants.WakeupCycleLock}, locks.Acquired)

	_, err = a.Wakeups.FindByID(ctx, "w")
	assert.Error(t, err)
}

func TestWire_CronPathLocksUntilAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, s, _ := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, s.configs.Upsert(ctx, models.JobConfig{ID: "job", URL: srv.URL, Timeout: 60_000}))

	result, err := a.Executor.ExecuteCron(ctx, "job")
	require.NoError(t, err)
	require.NotNil(t, result)

	locked, err := a.JobState.IsLocked(ctx, "job")
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, a.JobState.AckJob(ctx, "job"))
	locked, err = a.JobState.IsLocked(ctx, "job")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestWire_AdminOnlyWhenPortIsSet(t *testing.T) {
	a, _, _ := newTestApp(t)
	assert.Nil(t, a.Admin)

	a, _, _ = newTestApp(t, config.WithAdminConfig(config.AdminConfig{Port: 8080}))
	assert.NotNil(t, a.Admin)
}

func TestPurge(t *testing.T) {
	a, s, _ := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, s.wakeups.Upsert(ctx, models.Wakeup{ID: "w", DueAt: 1, CallbackURL: "http://cb"}))
	require.NoError(t, s.configs.Upsert(ctx, models.JobConfig{ID: "job", URL: "http://cb"}))
	require.NoError(t, s.locks.Add(ctx, "job", time.Now().Add(time.Hour).UnixMilli()))

	require.NoError(t, a.Purge(ctx))

	count, err := a.Wakeups.CountDue(ctx, time.Now().UnixMilli())
	require.NoError(t, err)
	assert.Zero(t, count)
	all, err := a.JobConfigs.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMigrate_NoopWithoutPostgres(t *testing.T) {
	a, _, _ := newTestApp(t)
	assert.NoError(t, a.Migrate(context.Background()))
}

func TestClose_RunsClosersInReverseOrder(t *testing.T) {
	var order []int
	a := &App{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return nil },
	}}
	require.NoError(t, a.Close())
	assert.Equal(t, []int{2, 1}, order)
}
