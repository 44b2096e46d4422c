package memory

import (
	"context"
	"sync"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

// TraceStore is an in-memory implementation of storage.TraceStore.
type TraceStore struct {
	mu   sync.RWMutex
	data map[string][]domain.AnnotatedRow // keyed by run_id
}

// NewTraceStore creates a new in-memory trace store.
func NewTraceStore() *TraceStore {
	return &TraceStore{
		data: make(map[string][]domain.AnnotatedRow),
	}
}

// InsertTrace stores the full trace of a run. Returns ErrDuplicateKey if the run already has a trace.
func (s *TraceStore) InsertTrace(_ context.Context, runID string, rows []domain.AnnotatedRow) error {
	if runID == "" || len(rows) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[runID] = cloneRows(rows)
	return nil
}

// GetByRunID retrieves the trace of a run. Returns ErrNotFound if the run has no trace.
func (s *TraceStore) GetByRunID(_ context.Context, runID string) ([]domain.AnnotatedRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRows(rows), nil
}

// cloneRows deep-copies rows, including the MA pointers.
func cloneRows(rows []domain.AnnotatedRow) []domain.AnnotatedRow {
	out := make([]domain.AnnotatedRow, len(rows))
	for i, r := range rows {
		if r.FastMA != nil {
			v := *r.FastMA
			r.FastMA = &v
		}
		if r.SlowMA != nil {
			v := *r.SlowMA
			r.SlowMA = &v
		}
		out[i] = r
	}
	return out
}

var _ storage.TraceStore = (*TraceStore)(nil)
