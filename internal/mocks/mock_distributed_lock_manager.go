package mocks

import (
	"context"
	"errors"
	"sync"
)

type MockDistributedLockManager struct {
	mu    sync.Mutex
	locks map[int64]bool

	Acquired []int64
}

func NewMockDistributedLockManager() *MockDistributedLockManager {
	return &MockDistributedLockManager{
		locks: make(map[int64]bool),
	}
}

func (m *MockDistributedLockManager) Acquire(ctx context.Context, lockID int64) error {
	ok, err := m.TryAcquire(ctx, lockID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("lock already acquired")
	}
	return nil
}

func (m *MockDistributedLockManager) TryAcquire(ctx context.Context, lockID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locks[lockID] {
		return false, nil
	}
	m.locks[lockID] = true
	m.Acquired = append(m.Acquired, lockID)
	return true, nil
}

func (m *MockDistributedLockManager) Release(ctx context.Context, lockID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.locks[lockID] {
		return errors.New("lock not held")
	}

	delete(m.locks, lockID)
	return nil
}

// Hold marks lockID as owned by someone else.
func (m *MockDistributedLockManager) Hold(lockID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[lockID] = true
}

func (m *MockDistributedLockManager) IsHeld(lockID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[lockID]
}
