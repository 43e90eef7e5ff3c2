package ports

import (
	"context"
	"encoding/json"
	"scanq/internal/domain"
)

// RecordStore persists queued scans. Implementations return records in
// insertion order and never hand out memory they keep.
type RecordStore interface {
	Add(ctx context.Context, rec domain.QueuedScan) (int64, error)
	GetAll(ctx context.Context) ([]domain.QueuedScan, error)
	// Delete removes the given ids; unknown ids are ignored.
	Delete(ctx context.Context, ids ...int64) error
	Count(ctx context.Context) (int, error)
}

// AttemptRecorder is implemented by stores that can update attempts in place.
type AttemptRecorder interface {
	SetAttempts(ctx context.Context, id int64, attempts int) error
}

// Opener is implemented by engines that need an explicit, idempotent open.
type Opener interface {
	Open(ctx context.Context) error
}

// SendFunc delivers one payload. A nil return means delivered.
type SendFunc func(ctx context.Context, payload json.RawMessage) error
