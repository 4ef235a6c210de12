package custom_errors

import "fmt"

// StorageError is returned once a store operation has used up its retry budget.
type StorageError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
