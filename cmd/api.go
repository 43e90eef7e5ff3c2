package cmd

import (
	"context"
	"scanq/internal/api"
	"scanq/internal/config"
	"scanq/internal/delivery"
	"scanq/internal/infra"
	"scanq/internal/queue"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func apiCmd() *cobra.Command {
	var port int
	var command = &cobra.Command{
		Use:   "api",
		Short: "Start the local queue API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg.LogLevel)

			engine := infra.OpenRecordStore(context.Background(), cfg)
			defer engine.Close()
			log.Info().Msgf("API server using %s record store", engine.Kind)

			send, closeSink, err := delivery.Open(cfg.Sink)
			if err != nil {
				return err
			}
			defer closeSink()

			server := api.NewServer(queue.New(engine.RecordStore, cfg.Flush), send)
			server.Run(port)
			return nil
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the server on")
	return command
}
