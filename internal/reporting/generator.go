package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/metrics"
	"crossover-lab/internal/storage"
	"crossover-lab/internal/sweep"
)

// ErrNoRuns is returned when there is nothing to report.
var ErrNoRuns = errors.New("no runs to report")

// Generator produces reports from stored data.
type Generator struct {
	runStore         storage.RunStore
	tradeRecordStore storage.TradeRecordStore
	now              func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunStore, tradeStore storage.TradeRecordStore) *Generator {
	return &Generator{
		runStore:         runStore,
		tradeRecordStore: tradeStore,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report for one instrument, or for all stored runs when
// instrument is empty. Returns ErrNoRuns if no run matches.
func (g *Generator) Generate(ctx context.Context, instrument string) (*Report, error) {
	var (
		runs []*domain.RunSummary
		err  error
	)
	if instrument == "" {
		runs, err = g.runStore.GetAll(ctx)
	} else {
		runs, err = g.runStore.GetByInstrument(ctx, instrument)
	}
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	ranked := metrics.Rank(runs)

	// Data quality: recompute trade stats from stored trades
	agg := metrics.NewAggregator(g.runStore, g.tradeRecordStore)
	totalTrades := 0
	for _, r := range ranked {
		perf, err := agg.TradeStats(ctx, r.RunID)
		if err != nil {
			return nil, fmt.Errorf("trade stats for %s: %w", r.RunID, err)
		}
		totalTrades += perf.TradeCount
	}

	trades, err := g.tradeRecordStore.GetByRunID(ctx, ranked[0].RunID)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:   g.now(),
		Instrument:    instrument,
		DataSummary:   summarize(ranked, totalTrades),
		DataQuality:   DataQualitySection{IntegrityErrors: agg.GetMismatchErrors()},
		Runs:          RunRows(ranked),
		BestRunTrades: TradeRows(trades),
	}, nil
}

func summarize(runs []*domain.RunSummary, totalTrades int) DataSummary {
	instruments := make(map[string]struct{})
	s := DataSummary{TotalRuns: len(runs), TotalTrades: totalTrades}

	for i, r := range runs {
		instruments[r.Instrument] = struct{}{}
		if i == 0 || r.StartDate.Before(s.DateRangeStart) {
			s.DateRangeStart = r.StartDate
		}
		if i == 0 || r.EndDate.After(s.DateRangeEnd) {
			s.DateRangeEnd = r.EndDate
		}
	}
	s.Instruments = len(instruments)
	return s
}

// RunRows converts ranked run summaries into leaderboard rows.
func RunRows(ranked []*domain.RunSummary) []RunRow {
	rows := make([]RunRow, len(ranked))
	for i, r := range ranked {
		rows[i] = RunRow{
			Rank:           i + 1,
			RunID:          r.RunID,
			Instrument:     r.Instrument,
			StrategyID:     StrategyID(r),
			MAKind:         string(r.MAKind),
			SizingPolicy:   r.SizingPolicy,
			StartDate:      r.StartDate,
			EndDate:        r.EndDate,
			BarCount:       r.BarCount,
			PortfolioValue: r.PortfolioValue,
			TotalProfit:    r.TotalProfit,
			ROIPct:         r.ROIPct,
			MaxDrawdownPct: r.MaxDrawdownPct,
			TradeCount:     r.TradeCount,
			WinRate:        r.WinRate,
			Signal:         string(r.Signal),
		}
	}
	return rows
}

// StrategyID names a stored run the way the strategy does, e.g. "SMA_CROSS_10_30".
func StrategyID(r *domain.RunSummary) string {
	kind := r.MAKind
	if kind == "" {
		kind = domain.MAKindSMA
	}
	return fmt.Sprintf("%s_CROSS_%d_%d", strings.ToUpper(string(kind)), r.FastWindow, r.SlowWindow)
}

// TradeRows converts trade records into report rows, preserving order.
func TradeRows(trades []*domain.TradeRecord) []TradeRow {
	rows := make([]TradeRow, len(trades))
	for i, t := range trades {
		rows[i] = TradeRow{
			TradeID:       t.TradeID,
			EntryFillTime: t.EntryFillTime,
			EntryPrice:    t.EntryPrice,
			ExitFillTime:  t.ExitFillTime,
			ExitPrice:     t.ExitPrice,
			Quantity:      t.Quantity,
			RealizedPnL:   t.RealizedPnL,
			ReturnPct:     t.ReturnPct,
			OutcomeClass:  t.OutcomeClass,
			HoldBars:      t.HoldBars,
		}
	}
	return rows
}

// SweepRows converts a sweep report: ranked runs first, then failures.
func SweepRows(r *sweep.Report) []SweepRow {
	rows := make([]SweepRow, 0, len(r.Ranked)+len(r.Failed))
	for i, e := range r.Ranked {
		rows = append(rows, SweepRow{
			Rank:           i + 1,
			FastWindow:     e.Config.FastWindow,
			SlowWindow:     e.Config.SlowWindow,
			PortfolioValue: e.Summary.PortfolioValue,
			ROIPct:         e.Summary.ROIPct,
			MaxDrawdownPct: e.Summary.MaxDrawdownPct,
			TradeCount:     e.Summary.TradeCount,
		})
	}
	for _, e := range r.Failed {
		rows = append(rows, SweepRow{
			FastWindow: e.Config.FastWindow,
			SlowWindow: e.Config.SlowWindow,
			Error:      e.Err.Error(),
		})
	}
	return rows
}
