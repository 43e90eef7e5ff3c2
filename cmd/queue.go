package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"scanq/internal/config"
	"scanq/internal/delivery"
	"scanq/internal/infra"
	"scanq/internal/queue"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type queueHandle struct {
	cfg    *config.Config
	engine *infra.Engine
	svc    *queue.Service
}

func openQueue(ctx context.Context) *queueHandle {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	engine := infra.OpenRecordStore(ctx, cfg)
	return &queueHandle{cfg: cfg, engine: engine, svc: queue.New(engine.RecordStore, cfg.Flush)}
}

func (h *queueHandle) Close() { _ = h.engine.Close() }

func enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <scan(json)>",
		Short: "Queue a scan payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[0])) {
				return errors.New("scan payload must be json")
			}

			h := openQueue(cmd.Context())
			defer h.Close()

			rec, err := h.svc.QueueScan(cmd.Context(), json.RawMessage(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("Scan queued with id %d.\n", rec.ID)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := openQueue(cmd.Context())
			defer h.Close()

			recs, err := h.svc.GetQueuedScans(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list scans: %w", err)
			}
			if len(recs) == 0 {
				fmt.Println("No scans queued.")
				return nil
			}

			fmt.Println("ID\tQueued at\t\t\tAttempts\tPayload")
			for _, r := range recs {
				fmt.Printf("%d\t%s\t%d\t\t%s\n", r.ID,
					time.UnixMilli(r.CreatedAt).Format(time.RFC3339), r.Attempts, r.Payload)
			}
			return nil
		},
	}
}

func countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show the number of queued scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := openQueue(cmd.Context())
			defer h.Close()

			n, err := h.svc.GetQueueCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%d pending\n", n)
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <id>...",
		Short: "Remove queued scans by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", a)
				}
				ids = append(ids, id)
			}

			h := openQueue(cmd.Context())
			defer h.Close()

			if err := h.svc.ClearQueued(cmd.Context(), ids); err != nil {
				return err
			}
			fmt.Printf("Removed %d scan(s).\n", len(ids))
			return nil
		},
	}
}

func flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Deliver queued scans now",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := openQueue(cmd.Context())
			defer h.Close()

			send, closeSink, err := delivery.Open(h.cfg.Sink)
			if err != nil {
				return err
			}
			defer closeSink()
			if send == nil {
				return errors.New("no delivery sink configured, set SCANQ_SINK_URL")
			}

			ctx := log.Logger.WithContext(cmd.Context())
			res, err := h.svc.FlushQueue(ctx, send)
			fmt.Printf("Processed %d, %d remaining.\n", res.Processed, res.Remaining)
			return err
		},
	}
}
