package usecase

import (
	"context"
	"fmt"
	"scanq/internal/domain"
	"scanq/internal/ports"
	"scanq/pkg/backoff"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 250 * time.Millisecond
)

// WaitFunc pauses for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production WaitFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Flusher delivers every queued scan through a SendFunc, one at a time,
// retrying transient failures with exponential backoff. Records that were
// delivered or gave up are purged together once the pass is over.
type Flusher struct {
	Store       ports.RecordStore
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	// PersistAttempts writes the attempt count of records left over by an
	// interrupted pass back to the store, so the next pass continues from it.
	PersistAttempts bool
	Wait            WaitFunc
}

func (f Flusher) Flush(ctx context.Context, send ports.SendFunc) (domain.FlushResult, error) {
	records, err := f.Store.GetAll(ctx)
	if err != nil {
		return domain.FlushResult{}, fmt.Errorf("read queued scans: %w", err)
	}

	logger := log.Ctx(ctx)
	logger.Debug().Int("queued", len(records)).Msg("flush started")

	var (
		terminal []int64
		runErr   error
	)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		done, attempts, err := f.deliver(ctx, rec, send)
		if done {
			terminal = append(terminal, rec.ID)
			continue
		}

		runErr = err
		if f.PersistAttempts && attempts != rec.Attempts {
			f.recordAttempts(rec.ID, attempts)
		}
		break
	}

	res := domain.FlushResult{Processed: len(terminal)}
	if err := f.Store.Delete(context.WithoutCancel(ctx), terminal...); err != nil {
		res.Processed = 0
		runErr = fmt.Errorf("purge delivered scans: %w", err)
	}

	n, err := f.Store.Count(context.WithoutCancel(ctx))
	if err != nil && runErr == nil {
		runErr = fmt.Errorf("count queued scans: %w", err)
	}
	res.Remaining = n

	logger.Info().
		Int("processed", res.Processed).
		Int("remaining", res.Remaining).
		Msg("flush finished")

	return res, runErr
}

// deliver runs the attempt loop for one record. done is false only when the
// pass was interrupted before the record reached a terminal state.
func (f Flusher) deliver(ctx context.Context, rec domain.QueuedScan, send ports.SendFunc) (done bool, attempts int, err error) {
	attempts = rec.Attempts
	limit := f.maxAttempts()
	logger := log.Ctx(ctx).With().Int64("scan_id", rec.ID).Logger()
	sendCtx := domain.WithRecordID(ctx, rec.ID)

	for {
		sendErr := send(sendCtx, rec.Payload)
		if sendErr == nil {
			logger.Debug().Int("attempts", attempts).Msg("scan delivered")
			return true, attempts, nil
		}
		attempts++

		if err := ctx.Err(); err != nil {
			return false, attempts, err
		}

		if !domain.IsRetryable(sendErr) {
			logger.Warn().Err(sendErr).Int("attempts", attempts).Msg("scan rejected, dropping")
			return true, attempts, nil
		}
		if attempts >= limit {
			logger.Warn().Err(sendErr).Int("attempts", attempts).Msg("scan retries exhausted, dropping")
			return true, attempts, nil
		}

		delay := f.delay(attempts)
		logger.Debug().Err(sendErr).Int("attempts", attempts).Dur("delay", delay).Msg("scan delivery failed, retrying")
		if err := f.wait(ctx, delay); err != nil {
			return false, attempts, err
		}
	}
}

func (f Flusher) recordAttempts(id int64, attempts int) {
	ar, ok := f.Store.(ports.AttemptRecorder)
	if !ok {
		return
	}
	if err := ar.SetAttempts(context.Background(), id, attempts); err != nil {
		log.Warn().Err(err).Int64("scan_id", id).Msg("failed to persist attempt count")
	}
}

func (f Flusher) delay(attempts int) time.Duration {
	base := f.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if f.Jitter {
		return backoff.ExponentialJitter(base, f.MaxDelay, attempts)
	}
	return backoff.Exponential(base, f.MaxDelay, attempts)
}

func (f Flusher) maxAttempts() int {
	if f.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return f.MaxAttempts
}

func (f Flusher) wait(ctx context.Context, d time.Duration) error {
	if f.Wait != nil {
		return f.Wait(ctx, d)
	}
	return Sleep(ctx, d)
}
