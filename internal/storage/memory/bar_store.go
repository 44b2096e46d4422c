package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

// barKey is the unique key of a bar.
type barKey struct {
	instrument string
	unixNano   int64
}

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[barKey]*domain.Bar
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[barKey]*domain.Bar),
	}
}

func keyOf(b *domain.Bar) barKey {
	return barKey{instrument: b.Instrument, unixNano: b.Timestamp.UnixNano()}
}

// InsertBulk adds multiple bars atomically. Fails entire batch on duplicate (instrument, timestamp).
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[barKey]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Instrument == "" || b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		k := keyOf(b)
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, b := range bars {
		copy := *b
		s.data[keyOf(b)] = &copy
	}

	return nil
}

// GetByInstrument retrieves all bars for an instrument, ordered by timestamp ASC.
func (s *BarStore) GetByInstrument(_ context.Context, instrument string) ([]*domain.Bar, error) {
	return s.filter(func(b *domain.Bar) bool {
		return b.Instrument == instrument
	}), nil
}

// GetByTimeRange retrieves bars for an instrument within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(_ context.Context, instrument string, start, end time.Time) ([]*domain.Bar, error) {
	return s.filter(func(b *domain.Bar) bool {
		return b.Instrument == instrument && !b.Timestamp.Before(start) && !b.Timestamp.After(end)
	}), nil
}

// ListInstruments returns all instruments with at least one bar, sorted.
func (s *BarStore) ListInstruments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.data {
		seen[k.instrument] = struct{}{}
	}

	result := make([]string, 0, len(seen))
	for instrument := range seen {
		result = append(result, instrument)
	}
	sort.Strings(result)
	return result, nil
}

func (s *BarStore) filter(keep func(*domain.Bar) bool) []*domain.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data {
		if keep(b) {
			copy := *b
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result
}

var _ storage.BarStore = (*BarStore)(nil)
