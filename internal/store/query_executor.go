package store

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"time"

	"wakesched/internal/custom_errors"
)

const (
	DefaultMaxAttempts = 3
	DefaultMinDelay    = 50 * time.Millisecond
	DefaultMaxDelay    = 100 * time.Millisecond
)

// Classifier reports whether a storage error is worth another attempt.
type Classifier func(err error) bool

// QueryExecutor runs store operations with a small retry budget to absorb transient
// connectivity faults. Attempts are separated by a random pause so concurrent callers
// do not retry in lock step.
type QueryExecutor struct {
	maxAttempts int
	minDelay    time.Duration
	maxDelay    time.Duration
	transient   Classifier
	sleep       func(ctx context.Context, d time.Duration) error
}

type ExecutorOption func(*QueryExecutor)

func WithAttempts(maxAttempts int) ExecutorOption {
	return func(q *QueryExecutor) {
		if maxAttempts > 0 {
			q.maxAttempts = maxAttempts
		}
	}
}

func WithDelayWindow(minDelay, maxDelay time.Duration) ExecutorOption {
	return func(q *QueryExecutor) {
		if minDelay >= 0 && maxDelay >= minDelay {
			q.minDelay = minDelay
			q.maxDelay = maxDelay
		}
	}
}

func WithClassifier(c Classifier) ExecutorOption {
	return func(q *QueryExecutor) {
		if c != nil {
			q.transient = c
		}
	}
}

// WithSleep replaces the pause between attempts; tests use it to avoid real waiting.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ExecutorOption {
	return func(q *QueryExecutor) {
		if sleep != nil {
			q.sleep = sleep
		}
	}
}

func NewQueryExecutor(opts ...ExecutorOption) *QueryExecutor {
	q := &QueryExecutor{
		maxAttempts: DefaultMaxAttempts,
		minDelay:    DefaultMinDelay,
		maxDelay:    DefaultMaxDelay,
		transient:   IsTransient,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Exec runs fn until it succeeds, fails with a non-transient error or the budget is used up.
func (q *QueryExecutor) Exec(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Query(ctx, q, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Query is Exec for operations returning a value. No partial result is returned on failure.
func Query[T any](ctx context.Context, q *QueryExecutor, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := 0

	for attempts < q.maxAttempts {
		if attempts > 0 {
			if err := q.sleep(ctx, q.pause()); err != nil {
				return zero, &custom_errors.StorageError{Op: op, Attempts: attempts, Err: lastErr}
			}
		}
		attempts++

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !q.transient(err) {
			return zero, &custom_errors.StorageError{Op: op, Attempts: attempts, Err: err}
		}
		log.Printf("store: %s failed (#%d of %d): %v", op, attempts, q.maxAttempts, err)
	}

	log.Printf("store: %s failed, max attempts reached: %v", op, lastErr)
	return zero, &custom_errors.StorageError{Op: op, Attempts: attempts, Err: lastErr}
}

func (q *QueryExecutor) pause() time.Duration {
	window := q.maxDelay - q.minDelay
	if window <= 0 {
		return q.minDelay
	}
	return q.minDelay + rand.N(window)
}

// IsTransient is the default classifier: everything except cancellation and
// "not found" style results is retried.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrNotFound):
		return false
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
