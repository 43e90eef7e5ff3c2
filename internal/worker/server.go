// internal/worker/server.go
package worker

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"scanq/internal/config"
	"scanq/internal/delivery"
	"scanq/internal/infra"
	"scanq/internal/queue"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Interval time.Duration
}

// Run flushes the queue on an interval until SIGINT or SIGTERM.
func Run(appCfg *config.Config, cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	engine := infra.OpenRecordStore(ctx, appCfg)
	defer engine.Close()

	send, closeSink, err := delivery.Open(appCfg.Sink)
	if err != nil {
		return err
	}
	defer closeSink()
	if send == nil {
		return errors.New("worker needs a delivery sink, set SCANQ_SINK_URL")
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = appCfg.Flush.SyncInterval
	}

	log.Ctx(ctx).Info().Str("engine", engine.Kind).Dur("interval", interval).Msg("sync worker started")

	syncer := NewSyncer(queue.New(engine.RecordStore, appCfg.Flush), send, interval)
	if err := syncer.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info().Msg("sync worker stopped")
	return nil
}
