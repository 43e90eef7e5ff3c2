// Package memstore is the volatile record store used when no durable
// engine can be opened. Contents are lost when the process exits.
package memstore

import (
	"context"
	"scanq/internal/domain"
	"scanq/internal/ports"
	"sync"
)

var (
	_ ports.RecordStore     = (*Store)(nil)
	_ ports.AttemptRecorder = (*Store)(nil)
)

type Store struct {
	mu      sync.Mutex
	records []domain.QueuedScan
	nextID  int64
}

func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) Add(_ context.Context, rec domain.QueuedScan) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == 0 {
		rec.ID = s.nextID
	}
	for _, r := range s.records {
		if r.ID == rec.ID {
			return 0, domain.ErrDuplicateID
		}
	}
	if rec.ID >= s.nextID {
		s.nextID = rec.ID + 1
	}
	s.records = append(s.records, rec.Clone())
	return rec.ID, nil
}

func (s *Store) GetAll(_ context.Context) ([]domain.QueuedScan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.QueuedScan, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if _, ok := drop[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	clear(s.records[len(kept):])
	s.records = kept
	return nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *Store) SetAttempts(_ context.Context, id int64, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Attempts = attempts
			return nil
		}
	}
	return nil
}
