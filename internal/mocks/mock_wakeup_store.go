package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"wakesched/internal/models"
	"wakesched/internal/store"
)

// MockWakeupStore is an in-memory store.WakeupStore. The *Err fields make the matching call fail.
type MockWakeupStore struct {
	mu      sync.Mutex
	wakeups map[string]models.Wakeup

	UpsertErr  error
	DeleteErr  error
	FindDueErr error

	Upserts int
	Deletes int
}

func NewMockWakeupStore(wakeups ...models.Wakeup) *MockWakeupStore {
	m := &MockWakeupStore{wakeups: make(map[string]models.Wakeup)}
	for _, w := range wakeups {
		m.wakeups[w.ID] = w
	}
	return m
}

func (m *MockWakeupStore) Upsert(ctx context.Context, wakeup models.Wakeup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	if wakeup.DueAt == 0 {
		wakeup.DueAt = time.Now().UnixMilli()
	}
	m.Upserts++
	m.wakeups[wakeup.ID] = wakeup
	return nil
}

func (m *MockWakeupStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deletes++
	delete(m.wakeups, id)
	return nil
}

func (m *MockWakeupStore) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wakeups = make(map[string]models.Wakeup)
	return nil
}

func (m *MockWakeupStore) FindDue(ctx context.Context, now int64, limit int) ([]models.Wakeup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FindDueErr != nil {
		return nil, m.FindDueErr
	}
	due := m.sorted(func(w models.Wakeup) bool { return w.DueAt <= now })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockWakeupStore) ForEachDue(ctx context.Context, from, to int64, handler store.WakeupHandler) error {
	m.mu.Lock()
	if m.FindDueErr != nil {
		m.mu.Unlock()
		return m.FindDueErr
	}
	due := m.sorted(func(w models.Wakeup) bool { return w.DueAt >= from && w.DueAt < to })
	m.mu.Unlock()

	for _, w := range due {
		if !handler(w) {
			return nil
		}
	}
	return nil
}

func (m *MockWakeupStore) FindByID(ctx context.Context, id string) (*models.Wakeup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wakeups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &w, nil
}

func (m *MockWakeupStore) CountDue(ctx context.Context, now int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.sorted(func(w models.Wakeup) bool { return w.DueAt <= now }))), nil
}

func (m *MockWakeupStore) Close() error {
	return nil
}

// Get returns a copy of the stored wake-up.
func (m *MockWakeupStore) Get(id string) (models.Wakeup, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wakeups[id]
	return w, ok
}

func (m *MockWakeupStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.wakeups)
}

func (m *MockWakeupStore) sorted(keep func(models.Wakeup) bool) []models.Wakeup {
	var out []models.Wakeup
	for _, w := range m.wakeups {
		if keep(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueAt == out[j].DueAt {
			return out[i].ID < out[j].ID
		}
		return out[i].DueAt < out[j].DueAt
	})
	return out
}
