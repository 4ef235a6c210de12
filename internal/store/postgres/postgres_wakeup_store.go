package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wakesched/internal/models"
	"wakesched/internal/store"
)

type PostgresWakeupStore struct {
	db       *sql.DB
	executor *store.QueryExecutor
	now      func() time.Time
}

func NewPostgresWakeupStore(db *sql.DB, executor *store.QueryExecutor) *PostgresWakeupStore {
	if executor == nil {
		executor = NewQueryExecutor()
	}
	return &PostgresWakeupStore{
		db:       db,
		executor: executor,
		now:      time.Now,
	}
}

func (s *PostgresWakeupStore) Upsert(ctx context.Context, wakeup models.Wakeup) error {
	if wakeup.DueAt == 0 {
		wakeup.DueAt = s.now().UnixMilli()
	}

	query := `
		INSERT INTO sched_schema.job_wakeups (id, wakeup_time, callback, retry_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			wakeup_time = EXCLUDED.wakeup_time,
			callback = EXCLUDED.callback,
			retry_count = EXCLUDED.retry_count
	`

	return s.executor.Exec(ctx, "wakeups.upsert", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, wakeup.ID, wakeup.DueAt, wakeup.CallbackURL, wakeup.RetryCount)
		return err
	})
}

func (s *PostgresWakeupStore) Delete(ctx context.Context, id string) error {
	return s.executor.Exec(ctx, "wakeups.delete", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sched_schema.job_wakeups WHERE id = $1`, id)
		return err
	})
}

func (s *PostgresWakeupStore) DeleteAll(ctx context.Context) error {
	return s.executor.Exec(ctx, "wakeups.deleteAll", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sched_schema.job_wakeups`)
		return err
	})
}

func (s *PostgresWakeupStore) FindDue(ctx context.Context, now int64, limit int) ([]models.Wakeup, error) {
	query := `
		SELECT id, wakeup_time, callback, retry_count
		FROM sched_schema.job_wakeups
		WHERE wakeup_time <= $1
		ORDER BY wakeup_time ASC
		LIMIT $2
	`

	return store.Query(ctx, s.executor, "wakeups.findDue", func(ctx context.Context) ([]models.Wakeup, error) {
		rows, err := s.db.QueryContext(ctx, query, now, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		wakeups := make([]models.Wakeup, 0, limit)
		for rows.Next() {
			wakeup, err := scanWakeup(rows)
			if err != nil {
				return nil, err
			}
			wakeups = append(wakeups, wakeup)
		}
		return wakeups, rows.Err()
	})
}

// ForEachDue only retries opening the cursor; once rows reach the handler a fault
// ends the iteration, so no wake-up is handed out twice.
func (s *PostgresWakeupStore) ForEachDue(ctx context.Context, from, to int64, handler store.WakeupHandler) error {
	query := `
		SELECT id, wakeup_time, callback, retry_count
		FROM sched_schema.job_wakeups
		WHERE wakeup_time >= $1 AND wakeup_time < $2
	`

	rows, err := store.Query(ctx, s.executor, "wakeups.forEachDue", func(ctx context.Context) (*sql.Rows, error) {
		return s.db.QueryContext(ctx, query, from, to)
	})
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		wakeup, err := scanWakeup(rows)
		if err != nil {
			return fmt.Errorf("scan wakeup: %w", err)
		}
		if !handler(wakeup) {
			return nil
		}
	}
	return rows.Err()
}

func (s *PostgresWakeupStore) FindByID(ctx context.Context, id string) (*models.Wakeup, error) {
	query := `
		SELECT id, wakeup_time, callback, retry_count
		FROM sched_schema.job_wakeups
		WHERE id = $1
	`

	return store.Query(ctx, s.executor, "wakeups.findById", func(ctx context.Context) (*models.Wakeup, error) {
		var wakeup models.Wakeup
		err := s.db.QueryRowContext(ctx, query, id).
			Scan(&wakeup.ID, &wakeup.DueAt, &wakeup.CallbackURL, &wakeup.RetryCount)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return &wakeup, nil
	})
}

func (s *PostgresWakeupStore) CountDue(ctx context.Context, now int64) (int64, error) {
	return store.Query(ctx, s.executor, "wakeups.countDue", func(ctx context.Context) (int64, error) {
		var count int64
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sched_schema.job_wakeups WHERE wakeup_time <= $1`, now).Scan(&count)
		return count, err
	})
}

func (s *PostgresWakeupStore) Close() error {
	return s.db.Close()
}

func scanWakeup(rows *sql.Rows) (models.Wakeup, error) {
	var wakeup models.Wakeup
	err := rows.Scan(&wakeup.ID, &wakeup.DueAt, &wakeup.CallbackURL, &wakeup.RetryCount)
	return wakeup, err
}
