package mocks

import (
	"context"
	"maps"
	"sync"

	"wakesched/internal/models"
)

type MockJobConfigStore struct {
	mu      sync.Mutex
	configs map[string]models.JobConfig
}

func NewMockJobConfigStore(configs ...models.JobConfig) *MockJobConfigStore {
	m := &MockJobConfigStore{configs: make(map[string]models.JobConfig)}
	for _, c := range configs {
		m.configs[c.ID] = c
	}
	return m
}

func (m *MockJobConfigStore) Upsert(ctx context.Context, config models.JobConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[config.ID] = config
	return nil
}

func (m *MockJobConfigStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, id)
	return nil
}

func (m *MockJobConfigStore) Find(ctx context.Context, id string) (*models.JobConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MockJobConfigStore) FindAll(ctx context.Context) (map[string]models.JobConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.configs), nil
}

func (m *MockJobConfigStore) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.configs)
	return nil
}

type MockJobLockStore struct {
	mu    sync.Mutex
	locks map[string]models.JobLock
}

func NewMockJobLockStore() *MockJobLockStore {
	return &MockJobLockStore{locks: make(map[string]models.JobLock)}
}

func (m *MockJobLockStore) Add(ctx context.Context, id string, expiresAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[id] = models.JobLock{Locked: true, ExpiresAt: expiresAt}
	return nil
}

func (m *MockJobLockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, id)
	return nil
}

func (m *MockJobLockStore) Find(ctx context.Context, id string) (models.JobLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[id], nil
}

func (m *MockJobLockStore) FindAll(ctx context.Context) (map[string]models.JobLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.locks), nil
}

func (m *MockJobLockStore) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.locks)
	return nil
}
