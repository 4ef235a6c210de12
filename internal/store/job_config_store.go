package store

import (
	"context"
	"wakesched/internal/models"
)

// JobConfigStore maps cron-triggered job ids to their callback configuration.
type JobConfigStore interface {
	Upsert(ctx context.Context, config models.JobConfig) error

	Delete(ctx context.Context, id string) error

	// Find returns nil, nil when the job has no configuration.
	Find(ctx context.Context, id string) (*models.JobConfig, error)

	FindAll(ctx context.Context) (map[string]models.JobConfig, error)

	DeleteAll(ctx context.Context) error
}

// JobLockStore persists the locks that suppress cron firings until a job is acknowledged.
type JobLockStore interface {
	// Add locks the job until expiresAt (epoch ms).
	Add(ctx context.Context, id string, expiresAt int64) error

	Delete(ctx context.Context, id string) error

	// Find returns an unlocked JobLock when the job has no lock row.
	Find(ctx context.Context, id string) (models.JobLock, error)

	FindAll(ctx context.Context) (map[string]models.JobLock, error)

	DeleteAll(ctx context.Context) error
}
