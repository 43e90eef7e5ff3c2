package domain

import (
	"context"
	"encoding/json"
	"time"
)

// QueuedScan is one scan submission waiting to be delivered.
type QueuedScan struct {
	ID        int64           `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt int64           `json:"createdAt"` // unix ms
	Attempts  int             `json:"attempts"`
}

// Clone returns a copy that shares no memory with q.
func (q QueuedScan) Clone() QueuedScan {
	if q.Payload != nil {
		q.Payload = append(json.RawMessage(nil), q.Payload...)
	}
	return q
}

// NewQueuedScan wraps payload in a fresh record stamped with now.
func NewQueuedScan(payload json.RawMessage, now time.Time) QueuedScan {
	return QueuedScan{
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: now.UnixMilli(),
	}
}

// FlushResult reports the outcome of one flush pass.
type FlushResult struct {
	Processed int `json:"processed"`
	Remaining int `json:"remaining"`
}

type recordIDKey struct{}

// WithRecordID attaches the id of the record being delivered to ctx.
func WithRecordID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, recordIDKey{}, id)
}

// RecordIDFromContext returns the id set by WithRecordID.
func RecordIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(recordIDKey{}).(int64)
	return id, ok
}
