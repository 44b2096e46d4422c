// Package verification checks that backtests are reproducible: stored runs are
// replayed from their stored series and compared field by field.
package verification

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"crossover-lab/internal/backtest"
	"crossover-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons (ratios, percentages, MAs).
// Money is decimal and compared exactly.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s: expected %v, got %v", d.Field, d.Expected, d.Actual)
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID       string
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Results       []VerificationResult
}

// Verifier interface for run replay verification.
type Verifier interface {
	// VerifyRun loads a stored run, re-executes it over the stored series
	// and compares summary and trades.
	VerifyRun(ctx context.Context, runID string) (*VerificationResult, error)

	// VerifyAll verifies all stored runs.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// differ accumulates divergences.
type differ struct {
	prefix string
	out    []FieldDivergence
}

func (d *differ) add(field string, expected, actual interface{}) {
	d.out = append(d.out, FieldDivergence{Field: d.prefix + field, Expected: expected, Actual: actual})
}

func (d *differ) str(field, expected, actual string) {
	if expected != actual {
		d.add(field, expected, actual)
	}
}

func (d *differ) num(field string, expected, actual int) {
	if expected != actual {
		d.add(field, expected, actual)
	}
}

func (d *differ) dec(field string, expected, actual decimal.Decimal) {
	if !expected.Equal(actual) {
		d.add(field, expected.String(), actual.String())
	}
}

func (d *differ) flt(field string, expected, actual float64) {
	if !floatEquals(expected, actual) {
		d.add(field, expected, actual)
	}
}

func (d *differ) ts(field string, expected, actual time.Time) {
	if !expected.Equal(actual) {
		d.add(field, expected, actual)
	}
}

func (d *differ) optFlt(field string, expected, actual *float64) {
	switch {
	case expected == nil && actual == nil:
	case expected == nil || actual == nil:
		d.add(field, expected, actual)
	default:
		d.flt(field, *expected, *actual)
	}
}

// CompareSummaries compares two run summaries. CreatedAt is ignored.
func CompareSummaries(stored, replayed *domain.RunSummary) []FieldDivergence {
	d := &differ{}

	d.str("RunID", stored.RunID, replayed.RunID)
	d.str("Instrument", stored.Instrument, replayed.Instrument)
	d.ts("StartDate", stored.StartDate, replayed.StartDate)
	d.ts("EndDate", stored.EndDate, replayed.EndDate)
	d.num("BarCount", stored.BarCount, replayed.BarCount)

	d.dec("EndingCash", stored.EndingCash, replayed.EndingCash)
	d.dec("PositionValue", stored.PositionValue, replayed.PositionValue)
	d.dec("PortfolioValue", stored.PortfolioValue, replayed.PortfolioValue)
	d.dec("RealizedPnL", stored.RealizedPnL, replayed.RealizedPnL)
	d.str("Signal", string(stored.Signal), string(replayed.Signal))

	d.num("TradeCount", stored.TradeCount, replayed.TradeCount)
	d.num("Wins", stored.Wins, replayed.Wins)
	d.num("Losses", stored.Losses, replayed.Losses)
	d.flt("WinRate", stored.WinRate, replayed.WinRate)
	d.dec("TotalProfit", stored.TotalProfit, replayed.TotalProfit)
	d.flt("ROIPct", stored.ROIPct, replayed.ROIPct)
	d.flt("MaxDrawdownPct", stored.MaxDrawdownPct, replayed.MaxDrawdownPct)

	return d.out
}

// CompareTradeRecords compares two trade records.
func CompareTradeRecords(stored, replayed *domain.TradeRecord) []FieldDivergence {
	d := &differ{}
	compareTrade(d, stored, replayed)
	return d.out
}

func compareTrade(d *differ, stored, replayed *domain.TradeRecord) {
	d.str("TradeID", stored.TradeID, replayed.TradeID)
	d.str("RunID", stored.RunID, replayed.RunID)
	d.ts("EntrySignalTime", stored.EntrySignalTime, replayed.EntrySignalTime)
	d.ts("EntryFillTime", stored.EntryFillTime, replayed.EntryFillTime)
	d.dec("EntryPrice", stored.EntryPrice, replayed.EntryPrice)
	d.dec("Quantity", stored.Quantity, replayed.Quantity)
	d.dec("EntryCommission", stored.EntryCommission, replayed.EntryCommission)
	d.ts("ExitSignalTime", stored.ExitSignalTime, replayed.ExitSignalTime)
	d.ts("ExitFillTime", stored.ExitFillTime, replayed.ExitFillTime)
	d.dec("ExitPrice", stored.ExitPrice, replayed.ExitPrice)
	d.dec("ExitCommission", stored.ExitCommission, replayed.ExitCommission)
	d.dec("RealizedPnL", stored.RealizedPnL, replayed.RealizedPnL)
	d.flt("ReturnPct", stored.ReturnPct, replayed.ReturnPct)
	d.str("OutcomeClass", stored.OutcomeClass, replayed.OutcomeClass)
	d.num("HoldBars", stored.HoldBars, replayed.HoldBars)
}

// CompareResults compares two in-memory results: snapshot, fills, trades and every trace row.
func CompareResults(expected, actual *backtest.Result) []FieldDivergence {
	d := &differ{}

	d.str("RunID", expected.RunID, actual.RunID)

	es, as := expected.Snapshot, actual.Snapshot
	d.dec("Snapshot.Cash", es.Cash, as.Cash)
	d.dec("Snapshot.PositionQty", es.PositionQty, as.PositionQty)
	d.dec("Snapshot.PortfolioValue", es.PortfolioValue, as.PortfolioValue)
	d.dec("Snapshot.RealizedPnL", es.RealizedPnL, as.RealizedPnL)
	d.str("Snapshot.Signal", string(es.Signal), string(as.Signal))
	if (es.PendingOrder == nil) != (as.PendingOrder == nil) {
		d.add("Snapshot.PendingOrder", es.PendingOrder, as.PendingOrder)
	}

	d.num("len(Fills)", len(expected.Fills), len(actual.Fills))
	for i := 0; i < len(expected.Fills) && i < len(actual.Fills); i++ {
		e, a := expected.Fills[i], actual.Fills[i]
		d.prefix = fmt.Sprintf("Fills[%d].", i)
		d.str("Side", string(e.Side), string(a.Side))
		d.num("BarIndex", e.BarIndex, a.BarIndex)
		d.dec("Quantity", e.Quantity, a.Quantity)
		d.dec("Price", e.Price, a.Price)
		d.dec("Commission", e.Commission, a.Commission)
	}
	d.prefix = ""

	d.num("len(Trades)", len(expected.Trades), len(actual.Trades))
	for i := 0; i < len(expected.Trades) && i < len(actual.Trades); i++ {
		d.prefix = fmt.Sprintf("Trades[%d].", i)
		compareTrade(d, &expected.Trades[i], &actual.Trades[i])
	}
	d.prefix = ""

	d.num("len(Rows)", len(expected.Rows), len(actual.Rows))
	for i := 0; i < len(expected.Rows) && i < len(actual.Rows); i++ {
		e, a := expected.Rows[i], actual.Rows[i]
		d.prefix = fmt.Sprintf("Rows[%d].", i)
		d.optFlt("FastMA", e.FastMA, a.FastMA)
		d.optFlt("SlowMA", e.SlowMA, a.SlowMA)
		d.str("Transition", string(e.Transition), string(a.Transition))
		d.str("Action", string(e.Action), string(a.Action))
		d.str("FillSide", string(e.FillSide), string(a.FillSide))
		d.str("Position", string(e.Position), string(a.Position))
		d.dec("Equity", e.Equity, a.Equity)
	}
	d.prefix = ""

	return d.out
}

// CheckDeterminism runs cfg over bars n times (at least twice) and diffs every
// repetition against the first.
func CheckDeterminism(bars []*domain.Bar, cfg domain.RunConfig, n int) (*VerificationResult, error) {
	if n < 2 {
		n = 2
	}

	first, err := backtest.Run(bars, cfg, nopLogger)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{RunID: first.RunID}
	for i := 1; i < n; i++ {
		again, err := backtest.Run(bars, cfg, nopLogger)
		if err != nil {
			return nil, fmt.Errorf("repetition %d: %w", i, err)
		}
		result.Divergences = append(result.Divergences, CompareResults(first, again)...)
	}
	result.Match = len(result.Divergences) == 0
	return result, nil
}

// floatEquals compares two float64 values with tolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
