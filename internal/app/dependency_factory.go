package app

import (
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"wakesched/internal/lock"
	"wakesched/internal/models/config"
	"wakesched/internal/store"
	"wakesched/internal/store/postgres"
	redisstore "wakesched/internal/store/redis"
)

type stores struct {
	wakeups store.WakeupStore
	configs store.JobConfigStore
	locks   store.JobLockStore
}

func newQueryExecutor(cfg *config.SchedConfig) *store.QueryExecutor {
	opts := []store.ExecutorOption{
		store.WithAttempts(cfg.StorageMaxAttempts),
		store.WithDelayWindow(cfg.StorageMinDelay, cfg.StorageMaxDelay),
	}
	switch cfg.StorageDriver {
	case config.Redis:
		return redisstore.NewQueryExecutor(opts...)
	default:
		return postgres.NewQueryExecutor(opts...)
	}
}

func newStores(cfg *config.SchedConfig, db *sql.DB, redisClient *redis.Client) (stores, error) {
	executor := newQueryExecutor(cfg)
	switch cfg.StorageDriver {
	case config.Postgres:
		return stores{
			wakeups: postgres.NewPostgresWakeupStore(db, executor),
			configs: postgres.NewPostgresJobConfigStore(db, executor),
			locks:   postgres.NewPostgresJobLockStore(db, executor),
		}, nil
	case config.Redis:
		return stores{
			wakeups: redisstore.NewRedisWakeupStore(redisClient, executor),
			configs: redisstore.NewRedisJobConfigStore(redisClient, executor),
			locks:   redisstore.NewRedisJobLockStore(redisClient, executor),
		}, nil
	default:
		return stores{}, fmt.Errorf("unsupported storage driver %s", cfg.StorageDriver)
	}
}

func newDistributedLockManager(driver config.StorageDriver, db *sql.DB, redisClient *redis.Client) (lock.DistributedLockManager, error) {
	switch driver {
	case config.Postgres:
		return lock.NewPostgresDistributedLockManager(db), nil
	case config.Redis:
		return lock.NewRedisDistributedLockManager(redisClient, config.DefaultRedisLockTTL), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %s", driver)
	}
}
