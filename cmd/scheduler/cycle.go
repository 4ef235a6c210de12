package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"wakesched/internal/app"
)

func CycleCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one dispatch cycle and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), load, func(a *app.App) error {
				report, err := a.Dispatcher.RunCycle(cmd.Context())
				data, mErr := json.MarshalIndent(report, "", "  ")
				if mErr != nil {
					return mErr
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			})
		},
	}
}

func PurgeCmd(load configLoader) *cobra.Command {
	var yes bool

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every wake-up, job configuration and job lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("purge deletes all scheduled work, confirm with --yes")
			}
			return withApp(cmd.Context(), load, func(a *app.App) error {
				if err := a.Purge(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "purged")
				return nil
			})
		},
	}
	purgeCmd.Flags().BoolVar(&yes, "yes", false, "confirm the purge")
	return purgeCmd
}
