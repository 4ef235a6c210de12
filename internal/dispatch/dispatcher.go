package dispatch

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"wakesched/internal/constants"
	"wakesched/internal/lock"
	"wakesched/internal/models"
	"wakesched/internal/models/config"
	"wakesched/internal/state"
	"wakesched/internal/store"
	"wakesched/internal/workerpool"
)

type WakeupExecutor interface {
	ExecuteWakeup(ctx context.Context, wakeup models.Wakeup) (models.JobResult, state.Disposition, error)
}

// CycleReport summarizes one dispatch cycle.
type CycleReport struct {
	StartedAt   int64         `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	Skipped     bool          `json:"skipped"`
	Submitted   int           `json:"submitted"`
	Rejected    int           `json:"rejected"`
	Deleted     int           `json:"deleted"`
	Rescheduled int           `json:"rescheduled"`
	Failed      int           `json:"failed"`
	Drained     bool          `json:"drained"`
}

// WakeupDispatcher runs dispatch cycles: every wake-up due at cycle start is handed to a bounded pool.
type WakeupDispatcher struct {
	wakeups      store.WakeupStore
	executor     WakeupExecutor
	lock         lock.DistributedLockManager
	mode         config.DispatchMode
	poolSize     int
	queueSize    int
	batchSize    int
	drainTimeout time.Duration
	now          func() time.Time
}

type Option func(*WakeupDispatcher)

func WithPool(size, queueSize int) Option {
	return func(d *WakeupDispatcher) {
		d.poolSize = size
		d.queueSize = queueSize
	}
}

func WithMode(mode config.DispatchMode, batchSize int) Option {
	return func(d *WakeupDispatcher) {
		d.mode = mode
		d.batchSize = batchSize
	}
}

func WithDrainTimeout(timeout time.Duration) Option {
	return func(d *WakeupDispatcher) {
		d.drainTimeout = timeout
	}
}

// WithLock makes every cycle hold WakeupCycleLock; a node that cannot take it skips the cycle.
func WithLock(lockManager lock.DistributedLockManager) Option {
	return func(d *WakeupDispatcher) {
		d.lock = lockManager
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *WakeupDispatcher) {
		d.now = now
	}
}

func NewWakeupDispatcher(wakeups store.WakeupStore, executor WakeupExecutor, opts ...Option) *WakeupDispatcher {
	d := &WakeupDispatcher{
		wakeups:      wakeups,
		executor:     executor,
		mode:         config.StreamMode,
		poolSize:     config.DefaultWorkerPoolSize,
		queueSize:    config.DefaultWorkerQueueSize,
		batchSize:    config.DefaultBatchSize,
		drainTimeout: config.DefaultDrainTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type tally struct {
	submitted, rejected, deleted, rescheduled, failed atomic.Int64
}

func (t *tally) report(r *CycleReport) {
	r.Submitted = int(t.submitted.Load())
	r.Rejected = int(t.rejected.Load())
	r.Deleted = int(t.deleted.Load())
	r.Rescheduled = int(t.rescheduled.Load())
	r.Failed = int(t.failed.Load())
}

// cycle is the state of one RunCycle call.
type cycle struct {
	d        *WakeupDispatcher
	pool     *workerpool.Pool
	tally    tally
	deadline time.Time
}

// RunCycle dispatches everything due now and waits for the deliveries, up to the drain timeout.
// Deliveries still running after that are cancelled. A storage failure while reading due wake-ups
// aborts the cycle once the submitted deliveries are drained.
func (d *WakeupDispatcher) RunCycle(ctx context.Context) (CycleReport, error) {
	start := d.now()
	report := CycleReport{StartedAt: start.UnixMilli()}

	if d.lock != nil {
		ok, err := d.lock.TryAcquire(ctx, constants.WakeupCycleLock)
		if err != nil {
			return report, err
		}
		if !ok {
			log.Println("dispatcher: another node runs the cycle, skipped")
			report.Skipped = true
			return report, nil
		}
		defer func() {
			if err := d.lock.Release(context.WithoutCancel(ctx), constants.WakeupCycleLock); err != nil {
				log.Printf("dispatcher: release cycle lock: %v", err)
			}
		}()
	}

	c := &cycle{
		d:        d,
		pool:     workerpool.New(ctx, d.poolSize, d.queueSize),
		deadline: time.Now().Add(d.drainTimeout),
	}

	var err error
	switch d.mode {
	case config.BatchMode:
		err = c.runBatches(ctx, start.UnixMilli())
	default:
		err = c.runStream(ctx, start.UnixMilli())
	}

	report.Drained = c.drain()
	c.tally.report(&report)
	report.Duration = d.now().Sub(start)

	if err != nil {
		log.Printf("dispatcher: cycle aborted: %v", err)
		return report, err
	}
	log.Printf("dispatcher: cycle done in %s: submitted=%d rejected=%d deleted=%d rescheduled=%d failed=%d",
		report.Duration, report.Submitted, report.Rejected, report.Deleted, report.Rescheduled, report.Failed)
	return report, nil
}

func (c *cycle) runStream(ctx context.Context, now int64) error {
	return c.d.wakeups.ForEachDue(ctx, 0, now+1, func(wakeup models.Wakeup) bool {
		if ctx.Err() != nil {
			return false
		}
		c.submit(wakeup, nil)
		return true
	})
}

// runBatches re-polls until a batch comes back short, brings nothing new, or hits a rejection.
func (c *cycle) runBatches(ctx context.Context, now int64) error {
	seen := make(map[string]struct{})
	for {
		// Rows handled earlier in the cycle may still be due when their outcome was not
		// persisted; widening the limit by the seen count reaches the rows behind them.
		limit := c.d.batchSize + len(seen)
		batch, err := c.d.wakeups.FindDue(ctx, now, limit)
		if err != nil {
			return err
		}

		var (
			wg       sync.WaitGroup
			fresh    int
			rejected bool
		)
		for _, wakeup := range batch {
			if _, ok := seen[wakeup.ID]; ok {
				continue
			}
			seen[wakeup.ID] = struct{}{}
			fresh++
			if !c.submit(wakeup, &wg) {
				rejected = true
			}
		}

		if !c.wait(ctx, &wg) {
			return nil
		}
		if fresh == 0 || rejected || len(batch) < limit {
			return nil
		}
	}
}

// submit hands wakeup to the pool and reports whether the pool accepted it.
func (c *cycle) submit(wakeup models.Wakeup, wg *sync.WaitGroup) bool {
	if wg != nil {
		wg.Add(1)
	}
	err := c.pool.Submit(func(ctx context.Context) {
		if wg != nil {
			defer wg.Done()
		}
		c.execute(ctx, wakeup)
	})
	if err == nil {
		c.tally.submitted.Add(1)
		return true
	}

	if wg != nil {
		wg.Done()
	}
	c.tally.rejected.Add(1)
	if errors.Is(err, workerpool.ErrPoolSaturated) {
		log.Printf("dispatcher: warning: pool saturated, wakeup %s deferred to next cycle", wakeup.ID)
	} else {
		log.Printf("dispatcher: warning: wakeup %s not submitted: %v", wakeup.ID, err)
	}
	return false
}

func (c *cycle) execute(ctx context.Context, wakeup models.Wakeup) {
	_, disposition, err := c.d.executor.ExecuteWakeup(ctx, wakeup)
	if err != nil {
		c.tally.failed.Add(1)
		log.Printf("dispatcher: wakeup %s: %v", wakeup.ID, err)
		return
	}
	switch disposition {
	case state.DispositionDeleted:
		c.tally.deleted.Add(1)
	case state.DispositionRescheduled:
		c.tally.rescheduled.Add(1)
	}
}

// wait blocks until wg is done. It reports false when ctx ends or the drain deadline passes first.
func (c *cycle) wait(ctx context.Context, wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(time.Until(c.deadline))
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		return false
	}
}

func (c *cycle) drain() bool {
	c.pool.Shutdown()
	if c.pool.AwaitTermination(max(time.Until(c.deadline), 0)) {
		return true
	}
	log.Printf("dispatcher: deliveries still running after %s, cancelling them", c.d.drainTimeout)
	c.pool.ShutdownNow()
	return false
}
