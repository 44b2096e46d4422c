package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"crossover-lab/internal/observability"
	"crossover-lab/internal/replay"
	"crossover-lab/internal/storage"
)

// Manager moves bars from a source into a bar store.
// It enforces ascending timestamp order and rejects series the simulator could not run;
// duplicates already in the store are rejected by the storage layer.
type Manager struct {
	source BarSource
	store  storage.BarStore
	logger zerolog.Logger
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Source BarSource
	Store  storage.BarStore
	Logger zerolog.Logger
}

// NewManager creates a new ingestion manager.
func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		source: opts.Source,
		store:  opts.Store,
		logger: opts.Logger,
	}
}

// Ingest fetches bars for instrument, sorts and validates them, and stores them
// in one batch. Returns the number of stored bars.
func (m *Manager) Ingest(ctx context.Context, instrument string) (int, error) {
	if instrument == "" {
		return 0, fmt.Errorf("%w: empty instrument", storage.ErrInvalidInput)
	}

	bars, err := m.source.Fetch(ctx, instrument)
	if err != nil {
		observability.RecordIngestionError("fetch")
		return 0, fmt.Errorf("fetch bars: %w", err)
	}

	replay.SortBars(bars)
	if err := replay.ValidateSeries(bars); err != nil {
		observability.RecordIngestionError("validation")
		return 0, err
	}

	if err := m.store.InsertBulk(ctx, bars); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			observability.RecordIngestionError("duplicate")
		} else {
			observability.RecordIngestionError("storage")
		}
		return 0, fmt.Errorf("store bars: %w", err)
	}

	observability.RecordBarsIngested(instrument, len(bars))
	m.logger.Info().
		Str("instrument", instrument).
		Int("bars", len(bars)).
		Time("first", bars[0].Timestamp).
		Time("last", bars[len(bars)-1].Timestamp).
		Msg("bars ingested")

	return len(bars), nil
}
