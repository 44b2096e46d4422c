package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"crossover-lab/internal/backtest"
	"crossover-lab/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Performance is the per-run performance summary.
type Performance struct {
	TotalProfit    decimal.Decimal `json:"total_profit"` // portfolio value - starting cash
	ROIPct         float64         `json:"roi_pct"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"` // worst peak-to-trough of the per-bar equity curve

	TradeCount           int     `json:"trade_count"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	WinRate              float64 `json:"win_rate"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`

	// Trade return distribution (percent), zero without trades.
	ReturnMean   float64 `json:"return_mean"`
	ReturnMedian float64 `json:"return_median"`
	ReturnStddev float64 `json:"return_stddev"`
	ReturnMin    float64 `json:"return_min"`
	ReturnMax    float64 `json:"return_max"`
}

// Compute derives performance figures from a finished run.
func Compute(res *backtest.Result) Performance {
	snap := res.Snapshot
	profit := snap.PortfolioValue.Sub(snap.StartingCash)

	perf := Performance{
		TotalProfit:    profit,
		MaxDrawdownPct: computeMaxDrawdownPct(res.Rows),
	}
	if snap.StartingCash.IsPositive() {
		perf.ROIPct = profit.Div(snap.StartingCash).Mul(hundred).InexactFloat64()
	}

	applyTradeStats(&perf, res.Trades)
	return perf
}

// Summarize builds the persisted run summary.
func Summarize(res *backtest.Result, createdAt time.Time) *domain.RunSummary {
	perf := Compute(res)
	cfg := res.Config
	snap := res.Snapshot

	return &domain.RunSummary{
		RunID:      res.RunID,
		Instrument: res.Instrument,
		StartDate:  res.StartDate,
		EndDate:    res.EndDate,
		BarCount:   len(res.Rows),

		FastWindow:     cfg.FastWindow,
		SlowWindow:     cfg.SlowWindow,
		MAKind:         maKind(cfg.MAKind),
		SizingPolicy:   sizingPolicy(cfg.Sizing),
		SizingUnits:    cfg.Sizing.Units,
		StartingCash:   snap.StartingCash,
		CommissionRate: cfg.CommissionRate,

		EndingCash:     snap.Cash,
		PositionValue:  snap.PositionValue,
		PortfolioValue: snap.PortfolioValue,
		RealizedPnL:    snap.RealizedPnL,
		Signal:         snap.Signal,

		TradeCount:     perf.TradeCount,
		Wins:           perf.Wins,
		Losses:         perf.Losses,
		WinRate:        perf.WinRate,
		TotalProfit:    perf.TotalProfit,
		ROIPct:         perf.ROIPct,
		MaxDrawdownPct: perf.MaxDrawdownPct,

		CreatedAt: createdAt.UTC(),
	}
}

// applyTradeStats fills counts and the return distribution.
// Trades are sorted by EntryFillTime ASC, TradeID ASC before order-dependent metrics.
func applyTradeStats(perf *Performance, trades []domain.TradeRecord) {
	n := len(trades)
	if n == 0 {
		return
	}

	sorted := make([]domain.TradeRecord, n)
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].EntryFillTime.Equal(sorted[j].EntryFillTime) {
			return sorted[i].EntryFillTime.Before(sorted[j].EntryFillTime)
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	returns := make([]float64, n)
	for i, t := range sorted {
		if t.OutcomeClass == domain.OutcomeClassWin {
			perf.Wins++
		} else {
			perf.Losses++
		}
		returns[i] = t.ReturnPct
	}

	perf.TradeCount = n
	perf.WinRate = computeWinRate(perf.Wins, n)
	perf.MaxConsecutiveLosses = computeMaxConsecutiveLosses(sorted)

	ordered := make([]float64, n)
	copy(ordered, returns)
	sort.Float64s(ordered)

	perf.ReturnMean = computeMean(returns)
	perf.ReturnStddev = computeStddev(returns, perf.ReturnMean)
	perf.ReturnMedian = computePercentile(ordered, 0.50)
	perf.ReturnMin = ordered[0]
	perf.ReturnMax = ordered[n-1]
}

// computeMaxDrawdownPct is MAX((peak - equity) / peak) over the equity curve, in percent.
// Rows must be in bar order.
func computeMaxDrawdownPct(rows []domain.AnnotatedRow) float64 {
	peak := decimal.Zero
	maxDD := decimal.Zero

	for _, r := range rows {
		if r.Equity.GreaterThan(peak) {
			peak = r.Equity
		}
		if !peak.IsPositive() {
			continue
		}
		dd := peak.Sub(r.Equity).Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD.Mul(hundred).InexactFloat64()
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxConsecutiveLosses finds the longest streak of losing trades.
func computeMaxConsecutiveLosses(trades []domain.TradeRecord) int {
	maxStreak := 0
	current := 0

	for _, t := range trades {
		if t.OutcomeClass == domain.OutcomeClassLoss {
			current++
			if current > maxStreak {
				maxStreak = current
			}
		} else {
			current = 0
		}
	}
	return maxStreak
}

func maKind(k domain.MAKind) domain.MAKind {
	if k == "" {
		return domain.MAKindSMA
	}
	return k
}

func sizingPolicy(s domain.SizingConfig) string {
	if s.Policy == "" {
		return domain.SizingAllCash
	}
	return s.Policy
}
