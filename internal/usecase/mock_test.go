package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"scanq/internal/domain"
	"scanq/internal/infra/memstore"
	"scanq/internal/ports"
	"sync"
	"time"
)

// scriptedStore wraps the in-memory store with injectable failures and call
// counters.
type scriptedStore struct {
	*memstore.Store

	getAllErr error
	deleteErr error
	countErr  error

	mu          sync.Mutex
	deleteCalls [][]int64
	setAttempts map[int64]int
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{Store: memstore.New(), setAttempts: map[int64]int{}}
}

func (s *scriptedStore) GetAll(ctx context.Context) ([]domain.QueuedScan, error) {
	if s.getAllErr != nil {
		return nil, s.getAllErr
	}
	return s.Store.GetAll(ctx)
}

func (s *scriptedStore) Delete(ctx context.Context, ids ...int64) error {
	s.mu.Lock()
	s.deleteCalls = append(s.deleteCalls, append([]int64(nil), ids...))
	s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Store.Delete(ctx, ids...)
}

func (s *scriptedStore) Count(ctx context.Context) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.Store.Count(ctx)
}

func (s *scriptedStore) SetAttempts(ctx context.Context, id int64, attempts int) error {
	s.mu.Lock()
	s.setAttempts[id] = attempts
	s.mu.Unlock()
	return s.Store.SetAttempts(ctx, id, attempts)
}

// recordingWait captures every backoff delay without sleeping.
type recordingWait struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *recordingWait) Wait(_ context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delays = append(w.delays, d)
	return nil
}

func (w *recordingWait) calls() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.delays...)
}

type marker struct {
	ID int `json:"id"`
}

// scriptedSender fails according to fail and records every payload it sees.
type scriptedSender struct {
	mu    sync.Mutex
	calls []int
	fail  func(id, call int) error
}

func (s *scriptedSender) Send(_ context.Context, payload json.RawMessage) error {
	var m marker
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}

	s.mu.Lock()
	s.calls = append(s.calls, m.ID)
	n := 0
	for _, id := range s.calls {
		if id == m.ID {
			n++
		}
	}
	s.mu.Unlock()

	if s.fail == nil {
		return nil
	}
	return s.fail(m.ID, n)
}

func (s *scriptedSender) callsFor(id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == id {
			n++
		}
	}
	return n
}

func (s *scriptedSender) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedSender) order() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.calls...)
}

var errNetwork = errors.New("connection reset by peer")

var (
	_ ports.RecordStore     = (*scriptedStore)(nil)
	_ ports.AttemptRecorder = (*scriptedStore)(nil)
)
