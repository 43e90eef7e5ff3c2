package cmd

import (
	"scanq/internal/config"
	"scanq/internal/worker"
	"time"

	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	var interval time.Duration

	var command = &cobra.Command{
		Use:   "worker",
		Short: "Flush queued scans on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg.LogLevel)
			return worker.Run(cfg, worker.Config{Interval: interval})
		},
	}

	command.Flags().DurationVar(&interval, "interval", 0, "Sync interval (defaults to SCANQ_SYNC_INTERVAL)")

	return command
}
