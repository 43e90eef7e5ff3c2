package worker

import (
	"context"
	"scanq/internal/domain"
	"scanq/internal/ports"
	"time"

	"github.com/rs/zerolog/log"
)

type queueFlusher interface {
	GetQueueCount(ctx context.Context) (int, error)
	FlushQueue(ctx context.Context, send ports.SendFunc) (domain.FlushResult, error)
}

// Syncer flushes the queue on a fixed interval. It stands in for the
// connectivity signal a UI would use: a tick with nothing queued is skipped.
type Syncer struct {
	Q        queueFlusher
	Send     ports.SendFunc
	Interval time.Duration
}

func NewSyncer(q queueFlusher, send ports.SendFunc, interval time.Duration) *Syncer {
	return &Syncer{Q: q, Send: send, Interval: interval}
}

const defaultInterval = 30 * time.Second

func (s *Syncer) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.syncOnce(ctx); err != nil && ctx.Err() == nil {
			log.Ctx(ctx).Warn().Err(err).Msg("sync pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Syncer) syncOnce(ctx context.Context) (domain.FlushResult, error) {
	n, err := s.Q.GetQueueCount(ctx)
	if err != nil {
		return domain.FlushResult{}, err
	}
	if n == 0 {
		return domain.FlushResult{}, nil
	}

	log.Ctx(ctx).Info().Int("queued", n).Msg("syncing queued scans")
	return s.Q.FlushQueue(ctx, s.Send)
}
