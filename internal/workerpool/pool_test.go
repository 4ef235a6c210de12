package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_RejectsBeyondSizePlusQueue(t *testing.T) {
	pool := New(context.Background(), 2, 1)
	release := make(chan struct{})
	var ran int32

	var accepted, rejected int
	for i := 0; i < 5; i++ {
		err := pool.Submit(func(ctx context.Context) {
			<-release
			atomic.AddInt32(&ran, 1)
		})
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrPoolSaturated):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, accepted)
	assert.Equal(t, 2, rejected)

	close(release)
	pool.Shutdown()
	require.True(t, pool.AwaitTermination(time.Second))
	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
}

func TestSubmit_LimitsConcurrency(t *testing.T) {
	pool := New(context.Background(), 2, 10)
	var running, peak int32
	var mu sync.Mutex

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) {
			n := atomic.AddInt32(&running, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}))
	}
	pool.Shutdown()
	require.True(t, pool.AwaitTermination(time.Second))
	assert.LessOrEqual(t, peak, int32(2))
}

func TestSubmit_AfterShutdown(t *testing.T) {
	pool := New(context.Background(), 1, 1)
	pool.Shutdown()

	err := pool.Submit(func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.True(t, pool.AwaitTermination(time.Millisecond))
}

func TestAwaitTermination_TimesOut(t *testing.T) {
	pool := New(context.Background(), 1, 0)
	release := make(chan struct{})
	defer close(release)

	require.NoError(t, pool.Submit(func(ctx context.Context) { <-release }))
	pool.Shutdown()
	assert.False(t, pool.AwaitTermination(20*time.Millisecond))
}

func TestShutdownNow_CancelsTasks(t *testing.T) {
	pool := New(context.Background(), 1, 1)
	var cancelled int32
	started := make(chan struct{})

	require.NoError(t, pool.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		atomic.AddInt32(&cancelled, 1)
	}))
	// queued behind the first task; never starts
	require.NoError(t, pool.Submit(func(ctx context.Context) {
		t.Error("queued task should not run after ShutdownNow")
	}))

	<-started
	pool.ShutdownNow()
	require.True(t, pool.AwaitTermination(time.Second))
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelled))
}
