package config

import (
	"time"

	"wakesched/internal/constants"
)

const (
	DefaultStorageDriver          = Postgres
	DefaultDispatchMode           = StreamMode
	DefaultRequestTimeout         = 60 * time.Second
	DefaultConnectorMaxRetries    = 5
	DefaultConnectorRetryInterval = 100 * time.Millisecond
	DefaultWorkerPoolSize         = 10
	DefaultWorkerQueueSize        = 1000
	DefaultBatchSize              = 1000
	DefaultDrainTimeout           = 6 * time.Hour
	DefaultStorageMaxAttempts     = 3
	DefaultStorageMinDelay        = 50 * time.Millisecond
	DefaultStorageMaxDelay        = 100 * time.Millisecond
	DefaultWakeupSchedule         = "@every 1s"
	DefaultJobSyncSchedule        = "@every 1m"
	DefaultOutcomeRoutingKey      = "wakeups.outcome"
	DefaultRedisLockTTL           = 30 * time.Second
)

func DefaultMaxRetryCount() int { return constants.MaxRetryCount }

func DefaultMinRetryDelay() time.Duration { return constants.MinRetryDelay }

func DefaultMaxRetryDelay() time.Duration { return constants.MaxRetryDelay }
