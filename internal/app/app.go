package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
	"wakesched/internal/connector"
	"wakesched/internal/constants"
	"wakesched/internal/db"
	"wakesched/internal/dispatch"
	"wakesched/internal/execution"
	"wakesched/internal/jobstate"
	"wakesched/internal/lock"
	"wakesched/internal/message_broker"
	"wakesched/internal/models/config"
	"wakesched/internal/retry"
	"wakesched/internal/scheduler"
	"wakesched/internal/store"
	"wakesched/internal/web"
)

// App holds every collaborator of one node, built once by SetUp.
type App struct {
	Config     *config.SchedConfig
	Wakeups    store.WakeupStore
	JobConfigs store.JobConfigStore
	JobLocks   store.JobLockStore
	Locks      lock.DistributedLockManager
	JobState   *jobstate.Service
	Policy     *retry.Policy
	Executor   *execution.Executor
	Dispatcher *dispatch.WakeupDispatcher
	Scheduler  *scheduler.Scheduler
	Admin      *web.Server

	sqlDB   *sql.DB
	broker  message_broker.MessageBroker
	closers []func() error
}

// SetUp connects to the configured storage (and RabbitMQ when enabled) and wires the node.
func SetUp(ctx context.Context, cfg *config.SchedConfig) (*App, error) {
	a := &App{Config: cfg}

	var redisClient *redis.Client
	switch cfg.StorageDriver {
	case config.Postgres:
		sqlDB, err := setupPostgres(ctx, cfg.PostgresConfig)
		if err != nil {
			return nil, err
		}
		a.sqlDB = sqlDB
		a.closers = append(a.closers, sqlDB.Close)
	case config.Redis:
		client, err := setupRedis(ctx, cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		redisClient = client
		a.closers = append(a.closers, client.Close)
	}

	s, err := newStores(cfg, a.sqlDB, redisClient)
	if err != nil {
		a.Close()
		return nil, err
	}
	locks, err := newDistributedLockManager(cfg.StorageDriver, a.sqlDB, redisClient)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.PublishOutcomes() {
		broker, err := message_broker.NewRabbitMQ(*cfg.RabbitMQConfig)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.broker = broker
		a.closers = append(a.closers, broker.Close)
	}

	a.wire(s, locks)
	return a, nil
}

// wire builds the domain collaborators on top of already connected stores.
func (a *App) wire(s stores, locks lock.DistributedLockManager) {
	cfg := a.Config
	a.Wakeups = s.wakeups
	a.JobConfigs = s.configs
	a.JobLocks = s.locks
	a.Locks = locks

	a.JobState = jobstate.NewService(s.configs, s.locks, constants.DefaultLockTTL)

	policyOpts := []retry.Option{retry.WithLimits(cfg.MaxRetryCount, cfg.MinRetryDelay, cfg.MaxRetryDelay)}
	if a.broker != nil {
		policyOpts = append(policyOpts, retry.WithOutcomeSink(
			message_broker.NewOutcomePublisher(a.broker, cfg.RabbitMQConfig.RoutingKey)))
	}
	a.Policy = retry.NewPolicy(s.wakeups, a.JobState, policyOpts...)

	conn := connector.NewRemoteServiceConnector(cfg.RequestTimeout, cfg.ConnectorMaxRetries, cfg.ConnectorRetryInterval)
	a.Executor = execution.NewExecutor(conn, a.Policy, a.JobState, s.configs, cfg.Secret)

	a.Dispatcher = dispatch.NewWakeupDispatcher(s.wakeups, a.Executor,
		dispatch.WithPool(cfg.WorkerPoolSize, cfg.WorkerQueueSize),
		dispatch.WithMode(cfg.DispatchMode, cfg.BatchSize),
		dispatch.WithDrainTimeout(cfg.DrainTimeout),
		dispatch.WithLock(locks),
	)

	a.Scheduler = scheduler.New(a.Dispatcher, a.Executor, a.JobState, s.configs, locks,
		cfg.WakeupSchedule, cfg.JobSyncSchedule)

	if cfg.AdminConfig.Port != 0 {
		a.Admin = web.NewServer(s.wakeups, s.configs, a.JobState, a.Dispatcher, cfg.AdminConfig)
	}
}

// Migrate creates the Postgres schema. Redis needs none.
func (a *App) Migrate(ctx context.Context) error {
	if a.sqlDB == nil {
		return nil
	}
	return db.Init(ctx, a.sqlDB, a.Locks)
}

// Run starts the scheduler and the admin API and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	errs := make(chan error, 1)
	if a.Admin != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Admin.Serve(ctx); err != nil {
				errs <- err
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
	}

	log.Printf("app: %s shutting down gracefully...", a.Config.Instance)
	a.Scheduler.Stop(context.WithoutCancel(ctx))
	wg.Wait()
	log.Println("app: shutdown complete")
	return err
}

// Purge deletes every wake-up, job configuration and job lock.
func (a *App) Purge(ctx context.Context) error {
	return errors.Join(
		a.Wakeups.DeleteAll(ctx),
		a.JobConfigs.DeleteAll(ctx),
		a.JobLocks.DeleteAll(ctx),
	)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
