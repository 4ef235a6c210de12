package lock

import "context"

type DistributedLockManager interface {
	// Acquire blocks until the lock is held or ctx is done.
	Acquire(ctx context.Context, lockID int64) error
	// TryAcquire returns false, without error, when another holder owns the lock.
	TryAcquire(ctx context.Context, lockID int64) (bool, error)
	Release(ctx context.Context, lockID int64) error
}
