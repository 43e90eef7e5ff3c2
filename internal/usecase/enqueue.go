package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"scanq/internal/domain"
	"scanq/internal/ports"
	"time"
)

type Enqueuer struct {
	Store ports.RecordStore
	Now   func() time.Time
}

// Enqueue persists payload as a new record with no attempts.
func (e Enqueuer) Enqueue(ctx context.Context, payload json.RawMessage) (domain.QueuedScan, error) {
	if len(payload) == 0 {
		return domain.QueuedScan{}, domain.ErrEmptyPayload
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	rec := domain.NewQueuedScan(payload, now())
	id, err := e.Store.Add(ctx, rec)
	if err != nil {
		return domain.QueuedScan{}, fmt.Errorf("queue scan: %w", err)
	}
	rec.ID = id
	return rec, nil
}
