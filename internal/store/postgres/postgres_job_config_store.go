package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"wakesched/internal/models"
	"wakesched/internal/store"
)

type PostgresJobConfigStore struct {
	db       *sql.DB
	executor *store.QueryExecutor
}

func NewPostgresJobConfigStore(db *sql.DB, executor *store.QueryExecutor) *PostgresJobConfigStore {
	if executor == nil {
		executor = NewQueryExecutor()
	}
	return &PostgresJobConfigStore{db: db, executor: executor}
}

// Upsert validates the cron expression, when set, before writing.
func (s *PostgresJobConfigStore) Upsert(ctx context.Context, config models.JobConfig) error {
	if config.CronExpression != "" {
		if _, err := cron.ParseStandard(config.CronExpression); err != nil {
			return fmt.Errorf("job %s: invalid cron expression %q: %w", config.ID, config.CronExpression, err)
		}
	}

	query := `
		INSERT INTO sched_schema.job_configs (id, url, timeout, cron_expression)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			timeout = EXCLUDED.timeout,
			cron_expression = EXCLUDED.cron_expression
	`

	return s.executor.Exec(ctx, "configs.upsert", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, config.ID, config.URL, config.Timeout, config.CronExpression)
		return err
	})
}

func (s *PostgresJobConfigStore) Delete(ctx context.Context, id string) error {
	return s.executor.Exec(ctx, "configs.delete", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sched_schema.job_configs WHERE id = $1`, id)
		return err
	})
}

func (s *PostgresJobConfigStore) Find(ctx context.Context, id string) (*models.JobConfig, error) {
	query := `SELECT id, url, timeout, cron_expression FROM sched_schema.job_configs WHERE id = $1`

	return store.Query(ctx, s.executor, "configs.find", func(ctx context.Context) (*models.JobConfig, error) {
		var config models.JobConfig
		err := s.db.QueryRowContext(ctx, query, id).
			Scan(&config.ID, &config.URL, &config.Timeout, &config.CronExpression)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &config, nil
	})
}

func (s *PostgresJobConfigStore) FindAll(ctx context.Context) (map[string]models.JobConfig, error) {
	query := `SELECT id, url, timeout, cron_expression FROM sched_schema.job_configs`

	return store.Query(ctx, s.executor, "configs.findAll", func(ctx context.Context) (map[string]models.JobConfig, error) {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		configs := make(map[string]models.JobConfig)
		for rows.Next() {
			var config models.JobConfig
			if err := rows.Scan(&config.ID, &config.URL, &config.Timeout, &config.CronExpression); err != nil {
				return nil, err
			}
			configs[config.ID] = config
		}
		return configs, rows.Err()
	})
}

func (s *PostgresJobConfigStore) DeleteAll(ctx context.Context) error {
	return s.executor.Exec(ctx, "configs.deleteAll", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sched_schema.job_configs`)
		return err
	})
}
