package replay

import (
	"context"
	"fmt"
	"time"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

// Replay feeds bars and their indicator rows through the engine in order.
// It runs to completion: there is no cancellation point inside a run.
func Replay(bars []*domain.Bar, rows []domain.IndicatorRow, engine ReplayEngine) error {
	if len(bars) != len(rows) {
		return fmt.Errorf("replay: %d bars but %d indicator rows", len(bars), len(rows))
	}

	for i, b := range bars {
		if err := engine.OnStep(Step{Index: i, Bar: b, Row: rows[i]}); err != nil {
			return err
		}
	}

	return nil
}

// Runner loads price series from storage.
type Runner struct {
	barStore storage.BarStore
}

// NewRunner creates a new replay runner.
func NewRunner(barStore storage.BarStore) *Runner {
	return &Runner{barStore: barStore}
}

// Load returns the validated bars of an instrument within [start, end] (inclusive).
func (r *Runner) Load(ctx context.Context, instrument string, start, end time.Time) ([]*domain.Bar, error) {
	bars, err := r.barStore.GetByTimeRange(ctx, instrument, start, end)
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", instrument, err)
	}
	return prepare(bars)
}

// LoadAll returns all validated bars of an instrument.
func (r *Runner) LoadAll(ctx context.Context, instrument string) ([]*domain.Bar, error) {
	bars, err := r.barStore.GetByInstrument(ctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", instrument, err)
	}
	return prepare(bars)
}

func prepare(bars []*domain.Bar) ([]*domain.Bar, error) {
	SortBars(bars)
	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}
	return bars, nil
}
