package mocks

import (
	"wakesched/internal/lock"
	"wakesched/internal/store"
)

var (
	_ store.WakeupStore           = (*MockWakeupStore)(nil)
	_ store.JobConfigStore        = (*MockJobConfigStore)(nil)
	_ store.JobLockStore          = (*MockJobLockStore)(nil)
	_ lock.DistributedLockManager = (*MockDistributedLockManager)(nil)
)
