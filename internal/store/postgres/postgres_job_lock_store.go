package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wakesched/internal/models"
	"wakesched/internal/store"
)

type PostgresJobLockStore struct {
	db       *sql.DB
	executor *store.QueryExecutor
}

func NewPostgresJobLockStore(db *sql.DB, executor *store.QueryExecutor) *PostgresJobLockStore {
	if executor == nil {
		executor = NewQueryExecutor()
	}
	return &PostgresJobLockStore{db: db, executor: executor}
}

// Add refreshes the expiry of an existing lock instead of failing on the primary key.
func (s *PostgresJobLockStore) Add(ctx context.Context, id string, expiresAt int64) error {
	query := `
		INSERT INTO sched_schema.job_locks (id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`

	return s.executor.Exec(ctx, "locks.add", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, id, time.UnixMilli(expiresAt).UTC())
		return err
	})
}

func (s *PostgresJobLockStore) Delete(ctx context.Context, id string) error {
	return s.executor.Exec(ctx, "locks.delete", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sched_schema.job_locks WHERE id = $1`, id)
		return err
	})
}

func (s *PostgresJobLockStore) Find(ctx context.Context, id string) (models.JobLock, error) {
	return store.Query(ctx, s.executor, "locks.find", func(ctx context.Context) (models.JobLock, error) {
		var expiresAt time.Time
		err := s.db.QueryRowContext(ctx,
			`SELECT expires_at FROM sched_schema.job_locks WHERE id = $1`, id).Scan(&expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			return models.JobLock{}, nil
		}
		if err != nil {
			return models.JobLock{}, err
		}
		return models.JobLock{Locked: true, ExpiresAt: expiresAt.UnixMilli()}, nil
	})
}

func (s *PostgresJobLockStore) FindAll(ctx context.Context) (map[string]models.JobLock, error) {
	return store.Query(ctx, s.executor, "locks.findAll", func(ctx context.Context) (map[string]models.JobLock, error) {
		rows, err := s.db.QueryContext(ctx, `SELECT id, expires_at FROM sched_schema.job_locks`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		locks := make(map[string]models.JobLock)
		for rows.Next() {
			var id string
			var expiresAt time.Time
			if err := rows.Scan(&id, &expiresAt); err != nil {
				return nil, err
			}
			locks[id] = models.JobLock{Locked: true, ExpiresAt: expiresAt.UnixMilli()}
		}
		return locks, rows.Err()
	})
}

func (s *PostgresJobLockStore) DeleteAll(ctx context.Context) error {
	return s.executor.Exec(ctx, "locks.deleteAll", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sched_schema.job_locks`)
		return err
	})
}
