package postgres

import (
	"context"
	"time"

	"wakesched/internal/store"
)

func testExecutor() *store.QueryExecutor {
	return NewQueryExecutor(store.WithSleep(func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}))
}
