package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

// ErrNoRuns is returned when no stored runs match a leaderboard query.
var ErrNoRuns = errors.New("no runs available for ranking")

// Rank orders run summaries by final portfolio value DESC, then RunID ASC.
// The input slice is not modified.
func Rank(runs []*domain.RunSummary) []*domain.RunSummary {
	ranked := make([]*domain.RunSummary, len(runs))
	copy(ranked, runs)
	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].PortfolioValue.Cmp(ranked[j].PortfolioValue); c != 0 {
			return c > 0
		}
		return ranked[i].RunID < ranked[j].RunID
	})
	return ranked
}

// Aggregator computes cross-run figures from persisted runs and trades.
type Aggregator struct {
	runStore   storage.RunStore
	tradeStore storage.TradeRecordStore

	// TradeCountMismatches tracks run_ids whose stored trade count differs from the summary.
	// Key: run_id, Value: stored trade records.
	TradeCountMismatches map[string]int
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(runStore storage.RunStore, tradeStore storage.TradeRecordStore) *Aggregator {
	return &Aggregator{
		runStore:             runStore,
		tradeStore:           tradeStore,
		TradeCountMismatches: make(map[string]int),
	}
}

// Leaderboard returns the stored runs of an instrument ranked by final portfolio value.
// limit <= 0 returns all. Returns ErrNoRuns if the instrument has no runs.
func (a *Aggregator) Leaderboard(ctx context.Context, instrument string, limit int) ([]*domain.RunSummary, error) {
	runs, err := a.runStore.GetByInstrument(ctx, instrument)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	ranked := Rank(runs)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// TradeStats recomputes trade statistics of a stored run from its trade records.
// Mismatches with the stored summary are recorded in a.TradeCountMismatches.
func (a *Aggregator) TradeStats(ctx context.Context, runID string) (Performance, error) {
	run, err := a.runStore.GetByID(ctx, runID)
	if err != nil {
		return Performance{}, err
	}

	trades, err := a.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return Performance{}, err
	}

	records := make([]domain.TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = *t
	}

	var perf Performance
	applyTradeStats(&perf, records)
	if perf.TradeCount != run.TradeCount {
		a.TradeCountMismatches[runID] = perf.TradeCount
	}
	return perf, nil
}

// GetMismatchErrors returns data quality errors for runs whose trades do not match the summary.
// Sorted by run_id for deterministic output.
func (a *Aggregator) GetMismatchErrors() []string {
	if len(a.TradeCountMismatches) == 0 {
		return nil
	}

	keys := make([]string, 0, len(a.TradeCountMismatches))
	for k := range a.TradeCountMismatches {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	errs := make([]string, len(keys))
	for i, runID := range keys {
		errs[i] = fmt.Sprintf("run %s has %d stored trade(s), summary disagrees", runID, a.TradeCountMismatches[runID])
	}
	return errs
}
