package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"crossover-lab/internal/backtest"
	"crossover-lab/internal/domain"
	"crossover-lab/internal/metrics"
	"crossover-lab/internal/replay"
	"crossover-lab/internal/storage"
)

// ErrRunNotFound is returned when a run ID doesn't exist.
var ErrRunNotFound = errors.New("run not found")

var nopLogger = zerolog.Nop()

// ReplayVerifier implements Verifier interface.
type ReplayVerifier struct {
	runStore   storage.RunStore
	tradeStore storage.TradeRecordStore
	loader     *replay.Runner
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RunStore   storage.RunStore
	TradeStore storage.TradeRecordStore
	BarStore   storage.BarStore
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		runStore:   opts.RunStore,
		tradeStore: opts.TradeStore,
		loader:     replay.NewRunner(opts.BarStore),
	}
}

// VerifyRun verifies a single run by replaying it.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	// 1. Load stored run
	stored, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	// 2. Replay over the stored range
	bars, err := v.loader.Load(ctx, stored.Instrument, stored.StartDate, stored.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load series for run %s: %w", runID, err)
	}
	res, err := backtest.Run(bars, stored.Config(), nopLogger)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", runID, err)
	}

	// 3. Compare summary
	divergences := CompareSummaries(stored, metrics.Summarize(res, stored.CreatedAt))

	// 4. Compare trades
	storedTrades, err := v.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	divergences = append(divergences, compareTradeSets(storedTrades, res.Trades)...)

	return &VerificationResult{
		RunID:       runID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// VerifyAll verifies every stored run, ordered by run ID.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	runs, err := v.runStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.RunID
	}
	sort.Strings(ids)

	report := &VerificationReport{
		TotalRuns: len(ids),
		Results:   make([]VerificationResult, 0, len(ids)),
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := v.VerifyRun(ctx, id)
		if err != nil {
			return nil, err
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}

// compareTradeSets pairs trades by TradeID.
func compareTradeSets(stored []*domain.TradeRecord, replayed []domain.TradeRecord) []FieldDivergence {
	d := &differ{}
	d.num("len(Trades)", len(stored), len(replayed))

	byID := make(map[string]*domain.TradeRecord, len(replayed))
	for i := range replayed {
		byID[replayed[i].TradeID] = &replayed[i]
	}

	for _, s := range stored {
		r, ok := byID[s.TradeID]
		if !ok {
			d.add("Trades["+s.TradeID+"]", "present", "missing")
			continue
		}
		d.prefix = "Trades[" + s.TradeID + "]."
		compareTrade(d, s, r)
		d.prefix = ""
	}

	return d.out
}

// Ensure ReplayVerifier implements Verifier
var _ Verifier = (*ReplayVerifier)(nil)
