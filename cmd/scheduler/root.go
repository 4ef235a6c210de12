package main

import (
	"context"

	"github.com/spf13/cobra"
	"wakesched/internal/app"
	"wakesched/internal/models/config"
)

const defaultConfigPath = "wakesched.yaml"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "wakesched",
		Short:        "Durable scheduler of wake-up HTTP callbacks",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path of the YAML configuration file")

	load := func() (*config.SchedConfig, error) {
		return config.LoadFile(configPath)
	}

	rootCmd.AddCommand(ServeCmd(load))
	rootCmd.AddCommand(MigrateCmd(load))
	rootCmd.AddCommand(CycleCmd(load))
	rootCmd.AddCommand(PurgeCmd(load))
	rootCmd.AddCommand(OutcomesCmd(load))
	rootCmd.AddCommand(ConfigCmd(load))
	return rootCmd
}

type configLoader func() (*config.SchedConfig, error)

// withApp loads the configuration, sets the node up and closes it once fn returns.
func withApp(ctx context.Context, load configLoader, fn func(a *app.App) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	a, err := app.SetUp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
