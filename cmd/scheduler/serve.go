package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"wakesched/internal/app"
)

func ServeCmd(load configLoader) *cobra.Command {
	var skipMigrations bool

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run dispatch cycles and cron jobs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, load, func(a *app.App) error {
				if !skipMigrations {
					if err := a.Migrate(ctx); err != nil {
						return err
					}
				}
				return a.Run(ctx)
			})
		},
	}
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply schema migrations on start")
	return serveCmd
}

func MigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the storage schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), load, func(a *app.App) error {
				return a.Migrate(cmd.Context())
			})
		},
	}
}
