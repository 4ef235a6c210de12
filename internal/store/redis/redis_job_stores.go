package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"wakesched/internal/models"
	"wakesched/internal/store"
)

// RedisJobConfigStore keeps every job configuration as a JSON field of one hash.
type RedisJobConfigStore struct {
	client   *redis.Client
	executor *store.QueryExecutor
	key      string
}

func NewRedisJobConfigStore(client *redis.Client, executor *store.QueryExecutor) *RedisJobConfigStore {
	if executor == nil {
		executor = NewQueryExecutor()
	}
	return &RedisJobConfigStore{client: client, executor: executor, key: defaultPrefix + ":jobconfigs"}
}

func (s *RedisJobConfigStore) Upsert(ctx context.Context, config models.JobConfig) error {
	if config.CronExpression != "" {
		if _, err := cron.ParseStandard(config.CronExpression); err != nil {
			return fmt.Errorf("job %s: invalid cron expression %q: %w", config.ID, config.CronExpression, err)
		}
	}
	body, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return s.executor.Exec(ctx, "configs.upsert", func(ctx context.Context) error {
		return s.client.HSet(ctx, s.key, config.ID, body).Err()
	})
}

func (s *RedisJobConfigStore) Delete(ctx context.Context, id string) error {
	return s.executor.Exec(ctx, "configs.delete", func(ctx context.Context) error {
		return s.client.HDel(ctx, s.key, id).Err()
	})
}

func (s *RedisJobConfigStore) Find(ctx context.Context, id string) (*models.JobConfig, error) {
	return store.Query(ctx, s.executor, "configs.find", func(ctx context.Context) (*models.JobConfig, error) {
		body, err := s.client.HGet(ctx, s.key, id).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		var config models.JobConfig
		if err := json.Unmarshal(body, &config); err != nil {
			return nil, fmt.Errorf("job config %s: %w", id, err)
		}
		return &config, nil
	})
}

func (s *RedisJobConfigStore) FindAll(ctx context.Context) (map[string]models.JobConfig, error) {
	return store.Query(ctx, s.executor, "configs.findAll", func(ctx context.Context) (map[string]models.JobConfig, error) {
		fields, err := s.client.HGetAll(ctx, s.key).Result()
		if err != nil {
			return nil, err
		}
		configs := make(map[string]models.JobConfig, len(fields))
		for id, body := range fields {
			var config models.JobConfig
			if err := json.Unmarshal([]byte(body), &config); err != nil {
				return nil, fmt.Errorf("job config %s: %w", id, err)
			}
			configs[id] = config
		}
		return configs, nil
	})
}

func (s *RedisJobConfigStore) DeleteAll(ctx context.Context) error {
	return s.executor.Exec(ctx, "configs.deleteAll", func(ctx context.Context) error {
		return s.client.Del(ctx, s.key).Err()
	})
}

// RedisJobLockStore keeps lock expirations (epoch ms) as fields of one hash.
type RedisJobLockStore struct {
	client   *redis.Client
	executor *store.QueryExecutor
	key      string
}

func NewRedisJobLockStore(client *redis.Client, executor *store.QueryExecutor) *RedisJobLockStore {
	if executor == nil {
		executor = NewQueryExecutor()
	}
	return &RedisJobLockStore{client: client, executor: executor, key: defaultPrefix + ":joblocks"}
}

func (s *RedisJobLockStore) Add(ctx context.Context, id string, expiresAt int64) error {
	return s.executor.Exec(ctx, "locks.add", func(ctx context.Context) error {
		return s.client.HSet(ctx, s.key, id, expiresAt).Err()
	})
}

func (s *RedisJobLockStore) Delete(ctx context.Context, id string) error {
	return s.executor.Exec(ctx, "locks.delete", func(ctx context.Context) error {
		return s.client.HDel(ctx, s.key, id).Err()
	})
}

func (s *RedisJobLockStore) Find(ctx context.Context, id string) (models.JobLock, error) {
	return store.Query(ctx, s.executor, "locks.find", func(ctx context.Context) (models.JobLock, error) {
		expiresAt, err := s.client.HGet(ctx, s.key, id).Int64()
		if errors.Is(err, redis.Nil) {
			return models.JobLock{}, nil
		}
		if err != nil {
			return models.JobLock{}, err
		}
		return models.JobLock{Locked: true, ExpiresAt: expiresAt}, nil
	})
}

func (s *RedisJobLockStore) FindAll(ctx context.Context) (map[string]models.JobLock, error) {
	return store.Query(ctx, s.executor, "locks.findAll", func(ctx context.Context) (map[string]models.JobLock, error) {
		fields, err := s.client.HGetAll(ctx, s.key).Result()
		if err != nil {
			return nil, err
		}
		locks := make(map[string]models.JobLock, len(fields))
		for id, value := range fields {
			expiresAt, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("job lock %s: %w", id, err)
			}
			locks[id] = models.JobLock{Locked: true, ExpiresAt: expiresAt}
		}
		return locks, nil
	})
}

func (s *RedisJobLockStore) DeleteAll(ctx context.Context) error {
	return s.executor.Exec(ctx, "locks.deleteAll", func(ctx context.Context) error {
		return s.client.Del(ctx, s.key).Err()
	})
}
