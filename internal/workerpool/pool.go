package workerpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	ErrPoolSaturated = errors.New("workerpool: pool saturated")
	ErrPoolClosed    = errors.New("workerpool: pool closed")
)

// Pool runs at most size tasks at once and holds at most queueSize more waiting for a slot.
// Submit never blocks: it fails with ErrPoolSaturated when both are full.
type Pool struct {
	admission *semaphore.Weighted
	run       *semaphore.Weighted
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func New(ctx context.Context, size, queueSize int) *Pool {
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		admission: semaphore.NewWeighted(int64(size + queueSize)),
		run:       semaphore.NewWeighted(int64(size)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit schedules task. The context passed to task is cancelled by ShutdownNow.
func (p *Pool) Submit(task func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	if !p.admission.TryAcquire(1) {
		return ErrPoolSaturated
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.admission.Release(1)

		if err := p.run.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.run.Release(1)
		if p.ctx.Err() != nil {
			return
		}
		task(p.ctx)
	}()
	return nil
}

// Shutdown stops accepting tasks. Tasks already submitted still run.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// AwaitTermination waits for every submitted task, up to timeout. It reports whether they all finished.
func (p *Pool) AwaitTermination(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// ShutdownNow stops accepting tasks and cancels the context of running and queued ones.
func (p *Pool) ShutdownNow() {
	p.Shutdown()
	p.cancel()
}
