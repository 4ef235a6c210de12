package constants

import "time"

// Advisory lock ids shared by every node of the cluster.
const (
	MigrationLock = iota + 1
	// WakeupCycleLock is held for the duration of one dispatch cycle.
	WakeupCycleLock
	// CronLeaderLock is held by the single node that fires cron-configured jobs.
	CronLeaderLock
)

// SecretHeader carries the shared secret on every outbound callback.
const SecretHeader = "X-Sched-Secret"

const (
	MaxRetryCount  = 32
	MinRetryDelay  = time.Second
	MaxRetryDelay  = time.Hour
	DefaultLockTTL = time.Hour
)

// Bounds of the connector's retry loop inside one delivery.
const (
	MaxConnectorRetries = 30
	MaxConnectorWait    = time.Hour
)
