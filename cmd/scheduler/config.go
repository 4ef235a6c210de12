package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"wakesched/internal/models/config"
)

const redacted = "********"

func ConfigCmd(load configLoader) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration, secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(redact(*cfg))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	configCmd.AddCommand(showCmd)
	return configCmd
}

type effectiveConfig struct {
	Instance               string `yaml:"instance"`
	Secret                 string `yaml:"secret"`
	StorageDriver          string `yaml:"storage_driver"`
	PostgresURL            string `yaml:"postgres_url,omitempty"`
	RedisAddress           string `yaml:"redis_address,omitempty"`
	RequestTimeout         string `yaml:"request_timeout"`
	ConnectorMaxRetries    int    `yaml:"connector_max_retries"`
	ConnectorRetryInterval string `yaml:"connector_retry_interval"`
	WorkerPoolSize         int    `yaml:"worker_pool_size"`
	WorkerQueueSize        int    `yaml:"worker_queue_size"`
	DrainTimeout           string `yaml:"drain_timeout"`
	DispatchMode           string `yaml:"dispatch_mode"`
	BatchSize              int    `yaml:"batch_size"`
	StorageMaxAttempts     int    `yaml:"storage_max_attempts"`
	MaxRetryCount          int    `yaml:"max_retry_count"`
	MinRetryDelay          string `yaml:"min_retry_delay"`
	MaxRetryDelay          string `yaml:"max_retry_delay"`
	WakeupSchedule         string `yaml:"wakeup_schedule"`
	JobSyncSchedule        string `yaml:"job_sync_schedule"`
	AdminPort              uint   `yaml:"admin_port,omitempty"`
	PublishOutcomes        bool   `yaml:"publish_outcomes"`
}

func redact(cfg config.SchedConfig) effectiveConfig {
	e := effectiveConfig{
		Instance:               cfg.Instance,
		StorageDriver:          cfg.StorageDriver.String(),
		RedisAddress:           cfg.RedisConfig.Address,
		RequestTimeout:         cfg.RequestTimeout.String(),
		ConnectorMaxRetries:    cfg.ConnectorMaxRetries,
		ConnectorRetryInterval: cfg.ConnectorRetryInterval.String(),
		WorkerPoolSize:         cfg.WorkerPoolSize,
		WorkerQueueSize:        cfg.WorkerQueueSize,
		DrainTimeout:           cfg.DrainTimeout.String(),
		DispatchMode:           cfg.DispatchMode.String(),
		BatchSize:              cfg.BatchSize,
		StorageMaxAttempts:     cfg.StorageMaxAttempts,
		MaxRetryCount:          cfg.MaxRetryCount,
		MinRetryDelay:          cfg.MinRetryDelay.String(),
		MaxRetryDelay:          cfg.MaxRetryDelay.String(),
		WakeupSchedule:         cfg.WakeupSchedule,
		JobSyncSchedule:        cfg.JobSyncSchedule,
		AdminPort:              cfg.AdminConfig.Port,
		PublishOutcomes:        cfg.PublishOutcomes(),
	}
	if cfg.Secret != "" {
		e.Secret = redacted
	}
	if cfg.PostgresConfig.ConnectionUrl != "" {
		e.PostgresURL = redacted
	}
	return e
}
