package store

import (
	"context"
	"errors"
	"wakesched/internal/models"
)

var ErrNotFound = errors.New("store: not found")

// WakeupHandler receives one due wake-up from ForEachDue. Returning false stops the iteration.
type WakeupHandler func(wakeup models.Wakeup) bool

// WakeupStore defines the durable operations over wake-ups.
type WakeupStore interface {
	// Upsert inserts the wake-up or overwrites dueAt, callback and retry count of the row with the same id.
	// A zero DueAt is stored as "now".
	Upsert(ctx context.Context, wakeup models.Wakeup) error

	// Delete removes the wake-up; deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	DeleteAll(ctx context.Context) error

	// FindDue returns at most limit wake-ups whose dueAt <= now (epoch ms).
	FindDue(ctx context.Context, now int64, limit int) ([]models.Wakeup, error)

	// ForEachDue streams wake-ups with from <= dueAt < to to handler until it returns false.
	ForEachDue(ctx context.Context, from, to int64, handler WakeupHandler) error

	// FindByID returns ErrNotFound when no row has the id.
	FindByID(ctx context.Context, id string) (*models.Wakeup, error)

	// CountDue counts wake-ups whose dueAt <= now.
	CountDue(ctx context.Context, now int64) (int64, error)

	Close() error
}
