package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
	"wakesched/internal/constants"
	"wakesched/internal/dispatch"
	"wakesched/internal/lock"
	"wakesched/internal/models"
	"wakesched/internal/store"
)

type CycleRunner interface {
	RunCycle(ctx context.Context) (dispatch.CycleReport, error)
}

type CronExecutor interface {
	ExecuteCron(ctx context.Context, jobID string) (*models.JobResult, error)
}

type LockChecker interface {
	IsLocked(ctx context.Context, jobID string) (bool, error)
}

type entry struct {
	id         cron.EntryID
	expression string
}

// Scheduler triggers dispatch cycles and cron-configured jobs. Every node runs dispatch cycles
// (the dispatcher serializes them cluster-wide); only the node holding CronLeaderLock fires jobs.
type Scheduler struct {
	cron           *cron.Cron
	dispatcher     CycleRunner
	executor       CronExecutor
	jobs           LockChecker
	configs        store.JobConfigStore
	lock           lock.DistributedLockManager
	wakeupSchedule string
	syncSchedule   string

	mu      sync.Mutex
	leader  bool
	entries map[string]entry
}

func New(dispatcher CycleRunner, executor CronExecutor, jobs LockChecker, configs store.JobConfigStore,
	lockManager lock.DistributedLockManager, wakeupSchedule, syncSchedule string) *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		cron:           cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		dispatcher:     dispatcher,
		executor:       executor,
		jobs:           jobs,
		configs:        configs,
		lock:           lockManager,
		wakeupSchedule: wakeupSchedule,
		syncSchedule:   syncSchedule,
		entries:        make(map[string]entry),
	}
}

// Start registers the periodic entries and starts firing them until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.wakeupSchedule, func() { s.runCycle(ctx) }); err != nil {
		return fmt.Errorf("wakeup schedule %q: %w", s.wakeupSchedule, err)
	}
	if _, err := s.cron.AddFunc(s.syncSchedule, func() { s.sync(ctx) }); err != nil {
		return fmt.Errorf("job sync schedule %q: %w", s.syncSchedule, err)
	}
	s.sync(ctx)

	s.cron.Start()
	log.Println("scheduler: started")
	return nil
}

// Stop waits for running entries and gives up cron leadership.
func (s *Scheduler) Stop(ctx context.Context) {
	<-s.cron.Stop().Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leader {
		if err := s.lock.Release(ctx, constants.CronLeaderLock); err != nil {
			log.Printf("scheduler: release leadership: %v", err)
		}
		s.leader = false
	}
	log.Println("scheduler: stopped")
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if _, err := s.dispatcher.RunCycle(ctx); err != nil {
		log.Printf("scheduler: dispatch cycle failed: %v", err)
	}
}

func (s *Scheduler) sync(ctx context.Context) {
	if err := s.SyncJobs(ctx); err != nil {
		log.Printf("scheduler: job sync failed: %v", err)
	}
}

// SyncJobs claims cron leadership if it is free and, as leader, aligns the registered job entries
// with the stored job configurations.
func (s *Scheduler) SyncJobs(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.leader {
		ok, err := s.lock.TryAcquire(ctx, constants.CronLeaderLock)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		log.Println("scheduler: this node now fires cron jobs")
		s.leader = true
	}

	configs, err := s.configs.FindAll(ctx)
	if err != nil {
		return err
	}

	for id, e := range s.entries {
		config, ok := configs[id]
		if !ok || config.CronExpression != e.expression {
			s.cron.Remove(e.id)
			delete(s.entries, id)
		}
	}
	for id, config := range configs {
		if config.CronExpression == "" {
			continue
		}
		if _, ok := s.entries[id]; ok {
			continue
		}
		jobID := id
		entryID, err := s.cron.AddFunc(config.CronExpression, func() { s.FireJob(ctx, jobID) })
		if err != nil {
			log.Printf("scheduler: job %s has an invalid cron expression %q: %v", id, config.CronExpression, err)
			continue
		}
		s.entries[id] = entry{id: entryID, expression: config.CronExpression}
	}
	return nil
}

// FireJob executes jobID unless it still waits for an acknowledgment.
func (s *Scheduler) FireJob(ctx context.Context, jobID string) {
	locked, err := s.jobs.IsLocked(ctx, jobID)
	if err != nil {
		log.Printf("scheduler: lock state of job %s: %v", jobID, err)
		return
	}
	if locked {
		log.Printf("scheduler: job %s waits for an ack, firing skipped", jobID)
		return
	}
	if _, err := s.executor.ExecuteCron(ctx, jobID); err != nil {
		log.Printf("scheduler: job %s: %v", jobID, err)
	}
}

// Jobs lists the job ids registered on this node.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) IsLeader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leader
}
