/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tripdesk/apiserver/internal/mq"
	"github.com/tripdesk/apiserver/internal/notify"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume trip request status events from the broker",
	Long: `Subscribes to the notifications channel and delivers every trip request
status change to the log sink. Usage:

	tripdesk worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()
		if cfg.MQ.Backend == "" || cfg.MQ.Backend == "none" {
			return errors.New("MQ_BACKEND must name a broker")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer broker.Close()

		consumer := notify.NewConsumer(notify.LogSink{Logger: logger}, logger)
		logger.Info("worker subscribed", "channel", cfg.MQ.NotificationsChannel, "backend", cfg.MQ.Backend)
		if err := broker.Subscribe(ctx, cfg.MQ.NotificationsChannel, consumer.Handle); err != nil && ctx.Err() == nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
