package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SecretEnv overrides the secret read from the config file.
const SecretEnv = "SCHED_SECRET"

// File is the YAML layout accepted by LoadFile. Durations use time.ParseDuration syntax.
type File struct {
	Instance string `yaml:"instance"`
	Secret   string `yaml:"secret"`

	Storage struct {
		Driver      string        `yaml:"driver"`
		Postgres    string        `yaml:"postgres_url"`
		Redis       RedisConfig   `yaml:"redis"`
		MaxAttempts int           `yaml:"max_attempts"`
		MinDelay    time.Duration `yaml:"min_delay"`
		MaxDelay    time.Duration `yaml:"max_delay"`
	} `yaml:"storage"`

	Connector struct {
		Timeout       time.Duration `yaml:"timeout"`
		MaxRetries    *int          `yaml:"max_retries"`
		RetryInterval time.Duration `yaml:"retry_interval"`
	} `yaml:"connector"`

	Dispatch struct {
		Mode         string        `yaml:"mode"`
		BatchSize    int           `yaml:"batch_size"`
		PoolSize     int           `yaml:"pool_size"`
		QueueSize    *int          `yaml:"queue_size"`
		DrainTimeout time.Duration `yaml:"drain_timeout"`
		Schedule     string        `yaml:"schedule"`
		JobSync      string        `yaml:"job_sync_schedule"`
	} `yaml:"dispatch"`

	Retry struct {
		MaxCount *int          `yaml:"max_count"`
		MinDelay time.Duration `yaml:"min_delay"`
		MaxDelay time.Duration `yaml:"max_delay"`
	} `yaml:"retry"`

	Admin *AdminConfig `yaml:"admin"`

	RabbitMQ *RabbitMQConfig `yaml:"rabbitmq"`
}

// LoadFile reads a YAML configuration file and applies it on top of the defaults.
func LoadFile(path string) (*SchedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a SchedConfig from YAML content.
func Parse(data []byte) (*SchedConfig, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if secret := os.Getenv(SecretEnv); secret != "" {
		f.Secret = secret
	}
	opts, err := f.options()
	if err != nil {
		return nil, err
	}
	return NewSchedConfig(f.Instance, opts...)
}

func (f *File) options() ([]Option, error) {
	var opts []Option

	if f.Secret != "" {
		opts = append(opts, WithSecret(f.Secret))
	}

	driver, err := ParseStorageDriver(f.Storage.Driver)
	if err != nil {
		return nil, err
	}
	switch driver {
	case Postgres:
		opts = append(opts, WithPostgresConfig(PostgresConfig{ConnectionUrl: f.Storage.Postgres}))
	case Redis:
		opts = append(opts, WithRedisConfig(f.Storage.Redis))
	}
	if f.Storage.MaxAttempts > 0 {
		opts = append(opts, WithStorageRetry(f.Storage.MaxAttempts,
			orDuration(f.Storage.MinDelay, DefaultStorageMinDelay),
			orDuration(f.Storage.MaxDelay, DefaultStorageMaxDelay)))
	}

	maxRetries := DefaultConnectorMaxRetries
	if f.Connector.MaxRetries != nil {
		maxRetries = *f.Connector.MaxRetries
	}
	opts = append(opts, WithConnector(
		orDuration(f.Connector.Timeout, DefaultRequestTimeout),
		maxRetries,
		orDuration(f.Connector.RetryInterval, DefaultConnectorRetryInterval)))

	mode, err := ParseDispatchMode(f.Dispatch.Mode)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithDispatchMode(mode, orInt(f.Dispatch.BatchSize, DefaultBatchSize)))

	queueSize := DefaultWorkerQueueSize
	if f.Dispatch.QueueSize != nil {
		queueSize = *f.Dispatch.QueueSize
	}
	opts = append(opts, WithWorkerPool(orInt(f.Dispatch.PoolSize, DefaultWorkerPoolSize), queueSize))
	opts = append(opts, WithDrainTimeout(orDuration(f.Dispatch.DrainTimeout, DefaultDrainTimeout)))
	opts = append(opts, WithSchedules(
		orString(f.Dispatch.Schedule, DefaultWakeupSchedule),
		orString(f.Dispatch.JobSync, DefaultJobSyncSchedule)))

	if f.Retry.MaxCount != nil || f.Retry.MinDelay > 0 || f.Retry.MaxDelay > 0 {
		maxCount := DefaultMaxRetryCount()
		if f.Retry.MaxCount != nil {
			maxCount = *f.Retry.MaxCount
		}
		opts = append(opts, WithRetryPolicy(maxCount,
			orDuration(f.Retry.MinDelay, DefaultMinRetryDelay()),
			orDuration(f.Retry.MaxDelay, DefaultMaxRetryDelay())))
	}

	if f.Admin != nil {
		opts = append(opts, WithAdminConfig(*f.Admin))
	}
	if f.RabbitMQ != nil {
		opts = append(opts, WithRabbitMQConfig(*f.RabbitMQ))
	}
	return opts, nil
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
