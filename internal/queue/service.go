// Package queue is the public face of the offline scan queue. The scanner UI
// queues scans here while it cannot reach the server and flushes them once it
// can.
package queue

import (
	"context"
	"encoding/json"
	"scanq/internal/config"
	"scanq/internal/domain"
	"scanq/internal/ports"
	"scanq/internal/usecase"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const flushKey = "flush"

// Service owns one record store and the retry settings used to drain it.
// Create one per process and share it.
type Service struct {
	mu    sync.RWMutex
	store ports.RecordStore
	wait  usecase.WaitFunc

	base  ports.RecordStore
	flush config.Flush
	now   func() time.Time

	inflight singleflight.Group
	callMu   sync.Mutex
	call     *flushCall
	gen      uint64
}

// flushCall is one running pass and the callers waiting on it.
type flushCall struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	send    ports.SendFunc
	waiters int
}

func New(store ports.RecordStore, flush config.Flush) *Service {
	return &Service{
		store: store,
		wait:  usecase.Sleep,
		base:  store,
		flush: flush,
		now:   time.Now,
	}
}

// QueueScan persists payload for later delivery.
func (s *Service) QueueScan(ctx context.Context, payload json.RawMessage) (domain.QueuedScan, error) {
	store, _ := s.current()
	return usecase.Enqueuer{Store: store, Now: s.now}.Enqueue(ctx, payload)
}

// GetQueuedScans returns copies of every queued record in delivery order.
func (s *Service) GetQueuedScans(ctx context.Context) ([]domain.QueuedScan, error) {
	store, _ := s.current()
	return store.GetAll(ctx)
}

// ClearQueued removes the given records. An empty list does nothing.
func (s *Service) ClearQueued(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	store, _ := s.current()
	return store.Delete(ctx, ids...)
}

func (s *Service) GetQueueCount(ctx context.Context) (int, error) {
	store, _ := s.current()
	return store.Count(ctx)
}

// FlushQueue tries to deliver every queued scan through send and purges the
// ones that reached a terminal state. A call made while another flush is
// running waits for it and returns its result; its own send is not used.
//
// The pass does not belong to any one caller. A caller whose ctx ends gets
// ctx.Err() back and stops waiting; the pass is cancelled only once every
// caller has stopped waiting, and the last one receives its partial counts.
func (s *Service) FlushQueue(ctx context.Context, send ports.SendFunc) (domain.FlushResult, error) {
	s.callMu.Lock()
	call := s.call
	if call == nil {
		s.gen++
		passCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &flushCall{
			key:    flushKey + "-" + strconv.FormatUint(s.gen, 10),
			ctx:    passCtx,
			cancel: cancel,
			send:   send,
		}
		s.call = call
	}
	call.waiters++
	ch := s.inflight.DoChan(call.key, func() (any, error) {
		defer s.finish(call)
		return s.runFlush(call.ctx, call.send)
	})
	s.callMu.Unlock()

	select {
	case r := <-ch:
		res, _ := r.Val.(domain.FlushResult)
		return res, r.Err
	case <-ctx.Done():
	}

	if !s.leave(call) {
		return domain.FlushResult{}, ctx.Err()
	}
	r := <-ch
	res, _ := r.Val.(domain.FlushResult)
	if r.Err == nil {
		return res, nil
	}
	return res, ctx.Err()
}

func (s *Service) runFlush(ctx context.Context, send ports.SendFunc) (domain.FlushResult, error) {
	store, wait := s.current()
	f := usecase.Flusher{
		Store:           store,
		MaxAttempts:     s.flush.MaxAttempts,
		BaseDelay:       s.flush.BaseDelay,
		MaxDelay:        s.flush.MaxDelay,
		Jitter:          s.flush.Jitter,
		PersistAttempts: s.flush.PersistAttempts,
		Wait:            wait,
	}
	return f.Flush(ctx, send)
}

func (s *Service) finish(call *flushCall) {
	s.callMu.Lock()
	if s.call == call {
		s.call = nil
	}
	s.callMu.Unlock()
	call.cancel()
}

// leave drops one waiter and cancels the pass when none are left. It
// reports whether the caller was the last one.
func (s *Service) leave(call *flushCall) bool {
	s.callMu.Lock()
	defer s.callMu.Unlock()
	call.waiters--
	if call.waiters > 0 {
		return false
	}
	call.cancel()
	return true
}

// OverrideWait replaces the backoff wait, typically with one that returns
// immediately in tests.
func (s *Service) OverrideWait(wait usecase.WaitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wait = wait
}

// OverrideStore swaps the record store, e.g. for a scripted fake.
func (s *Service) OverrideStore(store ports.RecordStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
}

// ResetOverrides restores the store given to New and the real wait.
func (s *Service) ResetOverrides() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = s.base
	s.wait = usecase.Sleep
}

func (s *Service) current() (ports.RecordStore, usecase.WaitFunc) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store, s.wait
}
