package retry

import (
	"context"
	"log"
	"time"

	"wakesched/internal/constants"
	"wakesched/internal/models"
	"wakesched/internal/state"
	"wakesched/internal/store"
)

// OutcomeSink receives every disposition taken by the policy. Failures are logged, never returned.
type OutcomeSink interface {
	PublishOutcome(ctx context.Context, outcome models.Outcome) error
}

// JobAcknowledger releases the cron lock of an acknowledged job.
type JobAcknowledger interface {
	AckJob(ctx context.Context, jobID string) error
}

type Policy struct {
	wakeups       store.WakeupStore
	jobs          JobAcknowledger
	sink          OutcomeSink
	maxRetryCount int
	minDelay      time.Duration
	maxDelay      time.Duration
	now           func() time.Time
}

type Option func(*Policy)

func WithLimits(maxRetryCount int, minDelay, maxDelay time.Duration) Option {
	return func(p *Policy) {
		p.maxRetryCount = maxRetryCount
		p.minDelay = minDelay
		p.maxDelay = maxDelay
	}
}

func WithOutcomeSink(sink OutcomeSink) Option {
	return func(p *Policy) {
		p.sink = sink
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		p.now = now
	}
}

func NewPolicy(wakeups store.WakeupStore, jobs JobAcknowledger, opts ...Option) *Policy {
	p := &Policy{
		wakeups:       wakeups,
		jobs:          jobs,
		maxRetryCount: constants.MaxRetryCount,
		minDelay:      constants.MinRetryDelay,
		maxDelay:      constants.MaxRetryDelay,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleResult deletes the wake-up when it succeeded without a retry hint or exhausted its retries,
// and reschedules it otherwise.
func (p *Policy) HandleResult(ctx context.Context, wakeup models.Wakeup, result models.JobResult) (state.Disposition, error) {
	// The callback has already been called; its outcome is persisted even when the cycle is being cancelled.
	ctx = context.WithoutCancel(ctx)

	if (result.IsSuccess() && !result.HasRetryHint()) || wakeup.RetryCount >= p.maxRetryCount {
		if wakeup.RetryCount >= p.maxRetryCount && !result.IsSuccess() {
			log.Printf("retry: wakeup %s dropped after %d retries", wakeup.ID, wakeup.RetryCount)
		}
		if err := p.wakeups.Delete(ctx, wakeup.ID); err != nil {
			return "", err
		}
		p.publish(ctx, wakeup, result, state.DispositionDeleted)
		return state.DispositionDeleted, nil
	}

	nowMs := p.now().UnixMilli()
	next := wakeup
	next.RetryCount = wakeup.RetryCount + 1
	next.DueAt = NextDueAt(nowMs, Backoff(next.RetryCount, p.minDelay, p.maxDelay), result.RetryDelay, result.RetryDate)

	if err := p.wakeups.Upsert(ctx, next); err != nil {
		return "", err
	}
	p.publish(ctx, next, result, state.DispositionRescheduled)
	return state.DispositionRescheduled, nil
}

// HandleCronResult acknowledges cron jobs whose callback answered with ack. Other results are only logged.
func (p *Policy) HandleCronResult(ctx context.Context, result models.JobResult) error {
	if result.IsSuccess() {
		if result.Ack {
			return p.jobs.AckJob(ctx, result.JobID)
		}
		return nil
	}
	log.Printf("retry: cron job %s failed, waiting for its next firing", result.JobID)
	return nil
}

func (p *Policy) publish(ctx context.Context, wakeup models.Wakeup, result models.JobResult, disposition state.Disposition) {
	if p.sink == nil {
		return
	}
	outcome := models.Outcome{
		WakeupID:    wakeup.ID,
		Disposition: disposition,
		Status:      result.Status,
		RetryCount:  wakeup.RetryCount,
		At:          p.now().UnixMilli(),
	}
	if disposition == state.DispositionRescheduled {
		outcome.DueAt = wakeup.DueAt
	}
	if err := p.sink.PublishOutcome(ctx, outcome); err != nil {
		log.Printf("retry: publish outcome of %s: %v", wakeup.ID, err)
	}
}

// Backoff is 2^retryCount milliseconds clamped to [minDelay, maxDelay].
func Backoff(retryCount int, minDelay, maxDelay time.Duration) time.Duration {
	retryCount = max(retryCount, 0)
	// 2^43 ms no longer fits in a time.Duration
	if retryCount > 42 {
		return maxDelay
	}
	d := time.Duration(int64(1)<<retryCount) * time.Millisecond
	return min(max(d, minDelay), maxDelay)
}

// NextDueAt computes the next due time in epoch ms. A retryDate in the future is honoured but never
// earlier than the backoff allows; otherwise the larger of retryDelay and backoff applies.
func NextDueAt(nowMs int64, backoff time.Duration, retryDelay, retryDate int64) int64 {
	backoffMs := backoff.Milliseconds()
	if retryDate > nowMs {
		return max(retryDate, RoundUpToNextSecond(nowMs+backoffMs))
	}
	return RoundUpToNextSecond(nowMs + max(retryDelay, backoffMs))
}

// RoundUpToNextSecond moves ts to the next whole second, strictly after ts.
func RoundUpToNextSecond(ts int64) int64 {
	return ts/1000*1000 + 1000
}
