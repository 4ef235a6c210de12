package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"wakesched/internal/models"
	"wakesched/internal/store"
)

const (
	defaultPrefix = "wakesched"
	scanPageSize  = 500
)

// RedisWakeupStore keeps one hash per wake-up and a sorted set of ids scored by due time.
type RedisWakeupStore struct {
	client   *redis.Client
	executor *store.QueryExecutor
	prefix   string
	now      func() time.Time
}

// IsTransient treats redis.Nil as a definitive answer and everything else like the default classifier.
func IsTransient(err error) bool {
	if errors.Is(err, redis.Nil) {
		return false
	}
	return store.IsTransient(err)
}

// NewQueryExecutor returns an executor classifying faults with IsTransient.
func NewQueryExecutor(opts ...store.ExecutorOption) *store.QueryExecutor {
	return store.NewQueryExecutor(append([]store.ExecutorOption{store.WithClassifier(IsTransient)}, opts...)...)
}

func NewRedisWakeupStore(client *redis.Client, executor *store.QueryExecutor) *RedisWakeupStore {
	if executor == nil {
		executor = NewQueryExecutor()
	}
	return &RedisWakeupStore{
		client:   client,
		executor: executor,
		prefix:   defaultPrefix,
		now:      time.Now,
	}
}

func (s *RedisWakeupStore) dueKey() string {
	return s.prefix + ":wakeups:due"
}

func (s *RedisWakeupStore) wakeupKey(id string) string {
	return s.prefix + ":wakeup:" + id
}

func (s *RedisWakeupStore) Upsert(ctx context.Context, wakeup models.Wakeup) error {
	if wakeup.DueAt == 0 {
		wakeup.DueAt = s.now().UnixMilli()
	}
	return s.executor.Exec(ctx, "wakeups.upsert", func(ctx context.Context) error {
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.wakeupKey(wakeup.ID),
				"callback", wakeup.CallbackURL,
				"due_at", wakeup.DueAt,
				"retry_count", wakeup.RetryCount,
			)
			pipe.ZAdd(ctx, s.dueKey(), redis.Z{Score: float64(wakeup.DueAt), Member: wakeup.ID})
			return nil
		})
		return err
	})
}

func (s *RedisWakeupStore) Delete(ctx context.Context, id string) error {
	return s.executor.Exec(ctx, "wakeups.delete", func(ctx context.Context) error {
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.wakeupKey(id))
			pipe.ZRem(ctx, s.dueKey(), id)
			return nil
		})
		return err
	})
}

func (s *RedisWakeupStore) DeleteAll(ctx context.Context) error {
	return s.executor.Exec(ctx, "wakeups.deleteAll", func(ctx context.Context) error {
		iter := s.client.Scan(ctx, 0, s.wakeupKey("*"), scanPageSize).Iterator()
		keys := make([]string, 0, scanPageSize)
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
			if len(keys) == scanPageSize {
				if err := s.client.Del(ctx, keys...).Err(); err != nil {
					return err
				}
				keys = keys[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
		keys = append(keys, s.dueKey())
		return s.client.Del(ctx, keys...).Err()
	})
}

func (s *RedisWakeupStore) FindDue(ctx context.Context, now int64, limit int) ([]models.Wakeup, error) {
	return store.Query(ctx, s.executor, "wakeups.findDue", func(ctx context.Context) ([]models.Wakeup, error) {
		ids, err := s.client.ZRangeByScore(ctx, s.dueKey(), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(now, 10),
			Count: int64(limit),
		}).Result()
		if err != nil {
			return nil, err
		}
		return s.load(ctx, ids)
	})
}

// ForEachDue walks the range by score. Handled wake-ups leave the range during the walk, so each
// page restarts at the last score handed out and skips the ids already seen at that score.
func (s *RedisWakeupStore) ForEachDue(ctx context.Context, from, to int64, handler store.WakeupHandler) error {
	lower := strconv.FormatInt(from, 10)
	upper := "(" + strconv.FormatInt(to, 10)
	seenAtLower := make(map[string]struct{})
	for {
		count := int64(scanPageSize + len(seenAtLower))
		members, err := store.Query(ctx, s.executor, "wakeups.forEachDue", func(ctx context.Context) ([]redis.Z, error) {
			return s.client.ZRangeByScoreWithScores(ctx, s.dueKey(), &redis.ZRangeBy{
				Min:   lower,
				Max:   upper,
				Count: count,
			}).Result()
		})
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(members))
		lastScore := int64(0)
		for _, z := range members {
			id, _ := z.Member.(string)
			if _, ok := seenAtLower[id]; ok {
				continue
			}
			ids = append(ids, id)
			lastScore = int64(z.Score)
		}

		page, err := store.Query(ctx, s.executor, "wakeups.forEachDue", func(ctx context.Context) ([]models.Wakeup, error) {
			return s.load(ctx, ids)
		})
		if err != nil {
			return err
		}
		for _, wakeup := range page {
			if !handler(wakeup) {
				return nil
			}
		}
		if int64(len(members)) < count || len(ids) == 0 {
			return nil
		}

		nextLower := strconv.FormatInt(lastScore, 10)
		if nextLower != lower {
			seenAtLower = make(map[string]struct{})
			lower = nextLower
		}
		for _, z := range members {
			if int64(z.Score) == lastScore {
				seenAtLower[z.Member.(string)] = struct{}{}
			}
		}
	}
}

func (s *RedisWakeupStore) FindByID(ctx context.Context, id string) (*models.Wakeup, error) {
	return store.Query(ctx, s.executor, "wakeups.findById", func(ctx context.Context) (*models.Wakeup, error) {
		fields, err := s.client.HGetAll(ctx, s.wakeupKey(id)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return nil, store.ErrNotFound
		}
		wakeup, err := decodeWakeup(id, fields)
		if err != nil {
			return nil, err
		}
		return &wakeup, nil
	})
}

func (s *RedisWakeupStore) CountDue(ctx context.Context, now int64) (int64, error) {
	return store.Query(ctx, s.executor, "wakeups.countDue", func(ctx context.Context) (int64, error) {
		return s.client.ZCount(ctx, s.dueKey(), "-inf", strconv.FormatInt(now, 10)).Result()
	})
}

func (s *RedisWakeupStore) Close() error {
	return s.client.Close()
}

// load fetches the hashes of ids in one pipeline, skipping ids whose hash vanished meanwhile.
func (s *RedisWakeupStore) load(ctx context.Context, ids []string) ([]models.Wakeup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.wakeupKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	wakeups := make([]models.Wakeup, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		wakeup, err := decodeWakeup(ids[i], fields)
		if err != nil {
			return nil, err
		}
		wakeups = append(wakeups, wakeup)
	}
	return wakeups, nil
}

func decodeWakeup(id string, fields map[string]string) (models.Wakeup, error) {
	dueAt, err := strconv.ParseInt(fields["due_at"], 10, 64)
	if err != nil {
		return models.Wakeup{}, fmt.Errorf("wakeup %s: invalid due_at: %w", id, err)
	}
	retryCount, err := strconv.Atoi(fields["retry_count"])
	if err != nil {
		return models.Wakeup{}, fmt.Errorf("wakeup %s: invalid retry_count: %w", id, err)
	}
	return models.Wakeup{
		ID:          id,
		DueAt:       dueAt,
		CallbackURL: fields["callback"],
		RetryCount:  retryCount,
	}, nil
}
