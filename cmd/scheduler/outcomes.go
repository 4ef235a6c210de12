package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"wakesched/internal/message_broker"
)

func OutcomesCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "outcomes",
		Short: "Print retry-policy outcomes published to RabbitMQ until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cfg.PublishOutcomes() {
				return fmt.Errorf("outcome publishing is not configured")
			}

			broker, err := message_broker.NewRabbitMQ(*cfg.RabbitMQConfig)
			if err != nil {
				return err
			}
			defer broker.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			messages, err := broker.Consume(ctx)
			if err != nil {
				return err
			}
			out := json.NewEncoder(cmd.OutOrStdout())
			for msg := range messages {
				outcome, err := message_broker.DecodeOutcome(msg)
				if err != nil {
					log.Printf("outcomes: skipping malformed message: %v", err)
					continue
				}
				if err := out.Encode(outcome); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
