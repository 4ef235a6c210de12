package jobstate

import (
	"context"
	"log"
	"time"

	"wakesched/internal/store"
)

// Service tracks which cron jobs wait for an acknowledgment.
type Service struct {
	configs    store.JobConfigStore
	locks      store.JobLockStore
	defaultTTL time.Duration
	now        func() time.Time
}

func NewService(configs store.JobConfigStore, locks store.JobLockStore, defaultTTL time.Duration) *Service {
	return &Service{
		configs:    configs,
		locks:      locks,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// LockJob suppresses cron firings of the job for its configured timeout, or the default TTL
// when the job has none.
func (s *Service) LockJob(ctx context.Context, jobID string) error {
	ttl := s.defaultTTL
	config, err := s.configs.Find(ctx, jobID)
	if err != nil {
		return err
	}
	if config != nil && config.Timeout > 0 {
		ttl = time.Duration(config.Timeout) * time.Millisecond
	}

	expiresAt := s.now().Add(ttl).UnixMilli()
	log.Printf("jobstate: locking job %s until %d", jobID, expiresAt)
	return s.locks.Add(ctx, jobID, expiresAt)
}

func (s *Service) AckJob(ctx context.Context, jobID string) error {
	log.Printf("jobstate: job %s acknowledged", jobID)
	return s.locks.Delete(ctx, jobID)
}

// IsLocked reports whether the job still waits for an acknowledgment. Expired locks are removed.
func (s *Service) IsLocked(ctx context.Context, jobID string) (bool, error) {
	lock, err := s.locks.Find(ctx, jobID)
	if err != nil {
		return false, err
	}
	if !lock.Locked {
		return false, nil
	}
	if lock.IsActive(s.now().UnixMilli()) {
		return true, nil
	}

	log.Printf("jobstate: lock of job %s expired at %d", jobID, lock.ExpiresAt)
	if err := s.locks.Delete(ctx, jobID); err != nil {
		return false, err
	}
	return false, nil
}
