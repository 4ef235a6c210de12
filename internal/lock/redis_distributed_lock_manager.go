package lock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisLockPollInterval = 100 * time.Millisecond

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

type heldLock struct {
	token string
	stop  context.CancelFunc
}

// RedisDistributedLockManager uses SET NX PX with a random token. A held lock is refreshed
// every ttl/3 until released.
type RedisDistributedLockManager struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	mu     sync.Mutex
	held   map[int64]heldLock
}

func NewRedisDistributedLockManager(client *redis.Client, ttl time.Duration) *RedisDistributedLockManager {
	return &RedisDistributedLockManager{
		client: client,
		ttl:    ttl,
		prefix: "wakesched:lock:",
		held:   make(map[int64]heldLock),
	}
}

func (l *RedisDistributedLockManager) key(lockID int64) string {
	return l.prefix + strconv.FormatInt(lockID, 10)
}

func (l *RedisDistributedLockManager) Acquire(ctx context.Context, lockID int64) error {
	ticker := time.NewTicker(redisLockPollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.TryAcquire(ctx, lockID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to acquire lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisDistributedLockManager) TryAcquire(ctx context.Context, lockID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[lockID]; ok {
		return false, nil
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(lockID), token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	refreshCtx, stop := context.WithCancel(context.Background())
	l.held[lockID] = heldLock{token: token, stop: stop}
	go l.refresh(refreshCtx, lockID, token)
	return true, nil
}

func (l *RedisDistributedLockManager) Release(ctx context.Context, lockID int64) error {
	l.mu.Lock()
	h, ok := l.held[lockID]
	delete(l.held, lockID)
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("failed to release lock: %d not held", lockID)
	}
	h.stop()

	if err := releaseScript.Run(ctx, l.client, []string{l.key(lockID)}, h.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (l *RedisDistributedLockManager) refresh(ctx context.Context, lockID int64, token string) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := refreshScript.Run(ctx, l.client, []string{l.key(lockID)}, token, l.ttl.Milliseconds()).Int64()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("lock: refresh of %d failed: %v", lockID, err)
				}
				continue
			}
			if res == 0 {
				log.Printf("lock: %d was lost before release", lockID)
				return
			}
		}
	}
}
