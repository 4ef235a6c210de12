package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wakesched/internal/connector"
	"wakesched/internal/constants"
	"wakesched/internal/execution"
	"wakesched/internal/mocks"
	"wakesched/internal/models"
	"wakesched/internal/models/config"
	"wakesched/internal/retry"
	"wakesched/internal/state"
)

const testNow = int64(1_700_000_000_000)

func testClock() time.Time { return time.UnixMilli(testNow) }

// MockExecutor deletes every wake-up it executes after delay.
type MockExecutor struct {
	store *mocks.MockWakeupStore
	delay time.Duration

	mu       sync.Mutex
	executed []string
}

func (m *MockExecutor) ExecuteWakeup(ctx context.Context, wakeup models.Wakeup) (models.JobResult, state.Disposition, error) {
	time.Sleep(m.delay)
	m.mu.Lock()
	m.executed = append(m.executed, wakeup.ID)
	m.mu.Unlock()
	if err := m.store.Delete(ctx, wakeup.ID); err != nil {
		return models.JobResult{}, "", err
	}
	return models.JobResult{Status: state.CallbackSuccess, JobID: wakeup.ID}, state.DispositionDeleted, nil
}

func (m *MockExecutor) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.executed...)
}

func dueWakeups(n int) []models.Wakeup {
	wakeups := make([]models.Wakeup, n)
	for i := range wakeups {
		wakeups[i] = models.Wakeup{
			ID:          fmt.Sprintf("w-%d", i),
			DueAt:       testNow - int64(n-i),
			CallbackURL: "http://cb",
			RetryCount:  i,
		}
	}
	return wakeups
}

func TestRunCycle_StreamDispatchesEverythingDue(t *testing.T) {
	wakeups := append(dueWakeups(4), models.Wakeup{ID: "later", DueAt: testNow + 1, CallbackURL: "http://cb"})
	store := mocks.NewMockWakeupStore(wakeups...)
	executor := &MockExecutor{store: store}

	d := NewWakeupDispatcher(store, executor, WithClock(testClock))
	report, err := d.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Submitted)
	assert.Equal(t, 4, report.Deleted)
	assert.Equal(t, 0, report.Rejected)
	assert.True(t, report.Drained)
	assert.ElementsMatch(t, []string{"w-0", "w-1", "w-2", "w-3"}, executor.Executed())

	_, ok := store.Get("later")
	assert.True(t, ok)
}

func TestRunCycle_SaturatedPoolDefersWakeups(t *testing.T) {
	for _, mode := range []config.DispatchMode{config.StreamMode, config.BatchMode} {
		t.Run(mode.String(), func(t *testing.T) {
			wakeups := dueWakeups(5)
			store := mocks.NewMockWakeupStore(wakeups...)
			executor := &MockExecutor{store: store, delay: 50 * time.Millisecond}

			d := NewWakeupDispatcher(store, executor,
				WithPool(2, 1),
				WithMode(mode, 10),
				WithClock(testClock),
			)
			report, err := d.RunCycle(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 3, report.Submitted)
			assert.Equal(t, 2, report.Rejected)

			processed := executor.Executed()
			assert.Len(t, processed, 3)
			for _, w := range wakeups {
				if contains(processed, w.ID) {
					continue
				}
				stored, ok := store.Get(w.ID)
				require.True(t, ok, "deferred wakeup %s must stay in the store", w.ID)
				assert.Equal(t, w.DueAt, stored.DueAt)
				assert.Equal(t, w.RetryCount, stored.RetryCount)
			}

			count, err := store.CountDue(context.Background(), testNow)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
		})
	}
}

func TestRunCycle_BatchRepollsUntilShortBatch(t *testing.T) {
	store := mocks.NewMockWakeupStore(dueWakeups(5)...)
	executor := &MockExecutor{store: store}

	d := NewWakeupDispatcher(store, executor, WithMode(config.BatchMode, 2), WithClock(testClock))
	report, err := d.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Submitted)
	assert.Equal(t, 0, store.Len())
}

// stuckExecutor leaves every wake-up due, as a delivery whose result could not be persisted would.
type stuckExecutor struct {
	calls atomic.Int32
}

func (s *stuckExecutor) ExecuteWakeup(ctx context.Context, wakeup models.Wakeup) (models.JobResult, state.Disposition, error) {
	s.calls.Add(1)
	return models.JobResult{}, "", errors.New("storage down")
}

func TestRunCycle_BatchReachesRowsBehindFailedOnes(t *testing.T) {
	store := mocks.NewMockWakeupStore(dueWakeups(5)...)
	executor := &stuckExecutor{}

	d := NewWakeupDispatcher(store, executor, WithMode(config.BatchMode, 2), WithClock(testClock))
	report, err := d.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(5), executor.calls.Load(), "every due wakeup is tried exactly once")
	assert.Equal(t, 5, report.Submitted)
	assert.Equal(t, 5, report.Failed)
	assert.Equal(t, 5, store.Len())
}

func TestRunCycle_StorageFailureAbortsCycle(t *testing.T) {
	store := mocks.NewMockWakeupStore(dueWakeups(2)...)
	store.FindDueErr = errors.New("connection refused")

	for _, mode := range []config.DispatchMode{config.StreamMode, config.BatchMode} {
		d := NewWakeupDispatcher(store, &MockExecutor{store: store}, WithMode(mode, 10), WithClock(testClock))
		_, err := d.RunCycle(context.Background())
		assert.EqualError(t, err, "connection refused")
	}
}

func TestRunCycle_DrainTimeoutCancelsDeliveries(t *testing.T) {
	store := mocks.NewMockWakeupStore(dueWakeups(1)...)
	var cancelled atomic.Bool
	executor := executorFunc(func(ctx context.Context, wakeup models.Wakeup) (models.JobResult, state.Disposition, error) {
		<-ctx.Done()
		cancelled.Store(true)
		return models.JobResult{}, "", ctx.Err()
	})

	d := NewWakeupDispatcher(store, executor, WithDrainTimeout(30*time.Millisecond), WithClock(testClock))
	report, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Drained)

	assert.Eventually(t, cancelled.Load, time.Second, 5*time.Millisecond)
}

func TestRunCycle_SkipsWhenLockIsHeldElsewhere(t *testing.T) {
	store := mocks.NewMockWakeupStore(dueWakeups(2)...)
	locks := mocks.NewMockDistributedLockManager()
	locks.Hold(constants.WakeupCycleLock)
	executor := &MockExecutor{store: store}

	d := NewWakeupDispatcher(store, executor, WithLock(locks), WithClock(testClock))
	report, err := d.RunCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Empty(t, executor.Executed())
	assert.Equal(t, 2, store.Len())
}

func TestRunCycle_ReleasesLock(t *testing.T) {
	store := mocks.NewMockWakeupStore(dueWakeups(1)...)
	locks := mocks.NewMockDistributedLockManager()

	d := NewWakeupDispatcher(store, &MockExecutor{store: store}, WithLock(locks), WithClock(testClock))
	_, err := d.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{constants.WakeupCycleLock}, locks.Acquired)
	assert.False(t, locks.IsHeld(constants.WakeupCycleLock))
}

func TestRunCycle_EndToEndWithRetryPolicy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ack": true}`))
	}))
	defer srv.Close()

	store := mocks.NewMockWakeupStore(
		models.Wakeup{ID: "ok", DueAt: testNow - 10, CallbackURL: srv.URL + "/ok"},
		models.Wakeup{ID: "fail", DueAt: testNow - 5, CallbackURL: srv.URL + "/fail"},
	)
	policy := retry.NewPolicy(store, nil, retry.WithClock(testClock))
	executor := execution.NewExecutor(connector.NewRemoteServiceConnector(time.Second, 0, time.Millisecond),
		policy, nil, mocks.NewMockJobConfigStore(), "s3cret")

	d := NewWakeupDispatcher(store, executor, WithClock(testClock))
	report, err := d.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 1, report.Rescheduled)
	assert.Equal(t, int32(2), calls.Load())

	_, ok := store.Get("ok")
	assert.False(t, ok)
	failed, ok := store.Get("fail")
	require.True(t, ok)
	assert.Equal(t, 1, failed.RetryCount)
	assert.Equal(t, retry.RoundUpToNextSecond(testNow+1000), failed.DueAt)
}

type executorFunc func(ctx context.Context, wakeup models.Wakeup) (models.JobResult, state.Disposition, error)

func (f executorFunc) ExecuteWakeup(ctx context.Context, wakeup models.Wakeup) (models.JobResult, state.Disposition, error) {
	return f(ctx, wakeup)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
