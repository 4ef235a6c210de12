package config

import "fmt"

type StorageDriver int

const (
	Postgres StorageDriver = iota + 1
	Redis
)

// String converts the StorageDriver enum to a human-readable string.
func (d StorageDriver) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case Redis:
		return "redis"
	}
	return "unknown"
}

func ParseStorageDriver(s string) (StorageDriver, error) {
	switch s {
	case "", "postgres":
		return Postgres, nil
	case "redis":
		return Redis, nil
	}
	return 0, fmt.Errorf("unknown storage driver %q", s)
}

// DispatchMode selects how a dispatch cycle reads due wake-ups.
type DispatchMode int

const (
	// StreamMode walks a single forward cursor and submits each row inline.
	StreamMode DispatchMode = iota + 1
	// BatchMode fetches limit-bounded batches and waits for each before re-polling.
	BatchMode
)

func (m DispatchMode) String() string {
	switch m {
	case StreamMode:
		return "stream"
	case BatchMode:
		return "batch"
	}
	return "unknown"
}

func ParseDispatchMode(s string) (DispatchMode, error) {
	switch s {
	case "", "stream":
		return StreamMode, nil
	case "batch":
		return BatchMode, nil
	}
	return 0, fmt.Errorf("unknown dispatch mode %q", s)
}
