package memory

import (
	"context"
	"sort"
	"sync"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunSummary),
	}
}

// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.RunID] = &copy
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByInstrument retrieves all runs for an instrument, ordered by created_at ASC.
func (s *RunStore) GetByInstrument(_ context.Context, instrument string) ([]*domain.RunSummary, error) {
	return s.collect(func(r *domain.RunSummary) bool { return r.Instrument == instrument }), nil
}

// GetAll retrieves all runs, ordered by created_at ASC.
func (s *RunStore) GetAll(_ context.Context) ([]*domain.RunSummary, error) {
	return s.collect(func(*domain.RunSummary) bool { return true }), nil
}

func (s *RunStore) collect(keep func(*domain.RunSummary) bool) []*domain.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunSummary
	for _, r := range s.data {
		if keep(r) {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})

	return result
}

var _ storage.RunStore = (*RunStore)(nil)
