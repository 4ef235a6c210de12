package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// PostgresDistributedLockManager holds session-level advisory locks. Each held lock pins its own
// connection, so lock and unlock always run on the same session.
type PostgresDistributedLockManager struct {
	db    *sql.DB
	mu    sync.Mutex
	conns map[int64]*sql.Conn
}

func NewPostgresDistributedLockManager(db *sql.DB) *PostgresDistributedLockManager {
	return &PostgresDistributedLockManager{
		db:    db,
		conns: make(map[int64]*sql.Conn),
	}
}

func (l *PostgresDistributedLockManager) Acquire(ctx context.Context, lockID int64) error {
	if l.held(lockID) {
		return fmt.Errorf("failed to acquire lock: %d already held", lockID)
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.keep(lockID, conn)
	return nil
}

func (l *PostgresDistributedLockManager) TryAcquire(ctx context.Context, lockID int64) (bool, error) {
	if l.held(lockID) {
		return false, nil
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&ok); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		_ = conn.Close()
		return false, nil
	}
	l.keep(lockID, conn)
	return true, nil
}

func (l *PostgresDistributedLockManager) Release(ctx context.Context, lockID int64) error {
	l.mu.Lock()
	conn, ok := l.conns[lockID]
	delete(l.conns, lockID)
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("failed to release lock: %d not held", lockID)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (l *PostgresDistributedLockManager) held(lockID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.conns[lockID]
	return ok
}

func (l *PostgresDistributedLockManager) keep(lockID int64, conn *sql.Conn) {
	l.mu.Lock()
	l.conns[lockID] = conn
	l.mu.Unlock()
}
