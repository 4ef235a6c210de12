package postgres

import (
	"errors"

	"github.com/lib/pq"
	"wakesched/internal/store"
)

// IsTransient classifies Postgres errors by SQLSTATE class: connection exceptions,
// transaction rollbacks (serialization, deadlock), resource shortages and operator
// intervention are retried, other server errors are not.
func IsTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57", "58":
			return true
		}
		return false
	}
	return store.IsTransient(err)
}

// NewQueryExecutor returns an executor classifying faults with IsTransient.
func NewQueryExecutor(opts ...store.ExecutorOption) *store.QueryExecutor {
	return store.NewQueryExecutor(append([]store.ExecutorOption{store.WithClassifier(IsTransient)}, opts...)...)
}
