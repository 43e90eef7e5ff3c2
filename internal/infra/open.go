// Package infra picks the record store engine for the process.
package infra

import (
	"context"
	"io"
	"scanq/internal/config"
	"scanq/internal/infra/memstore"
	"scanq/internal/infra/redisq"
	"scanq/internal/infra/sqlitestore"
	"scanq/internal/ports"

	"github.com/rs/zerolog/log"
)

// Engine is an opened record store plus the resources behind it.
type Engine struct {
	ports.RecordStore
	// Kind is the engine actually in use; it differs from the configured
	// one after a fallback.
	Kind    string
	closers []io.Closer
}

func (e *Engine) Close() error {
	var first error
	for _, c := range e.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenRecordStore opens the configured durable engine. When it cannot be
// opened the in-memory store is used instead; this never fails.
func OpenRecordStore(ctx context.Context, cfg *config.Config) *Engine {
	var (
		store  ports.RecordStore
		closer io.Closer
	)

	switch cfg.Store {
	case config.StoreMemory:
		return &Engine{RecordStore: memstore.New(), Kind: config.StoreMemory}
	case config.StoreRedis:
		c := redisq.New(cfg.Redis)
		store, closer = c, c
	default:
		s := sqlitestore.New(cfg.DataDir)
		store, closer = s, s
	}

	return openOrFallback(ctx, cfg.Store, store, closer)
}

func openOrFallback(ctx context.Context, kind string, store ports.RecordStore, closer io.Closer) *Engine {
	if kind == "" {
		kind = config.StoreSQLite
	}

	if o, ok := store.(ports.Opener); ok {
		if err := o.Open(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("engine", kind).
				Msg("durable record store unavailable, queued scans will not survive a restart")
			if closer != nil {
				_ = closer.Close()
			}
			return &Engine{RecordStore: memstore.New(), Kind: config.StoreMemory}
		}
	}

	e := &Engine{RecordStore: store, Kind: kind}
	if closer != nil {
		e.closers = append(e.closers, closer)
	}
	return e
}
