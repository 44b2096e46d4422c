package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"crossover-lab/internal/domain"
)

// RenderRunsCSV renders leaderboard rows as a CSV string.
func RenderRunsCSV(rows []RunRow) (string, error) {
	records := [][]string{{
		"rank", "run_id", "instrument", "strategy_id", "ma_kind", "sizing_policy",
		"start_date", "end_date", "bar_count",
		"portfolio_value", "total_profit", "roi_pct", "max_drawdown_pct",
		"trade_count", "win_rate", "signal",
	}}
	for _, r := range rows {
		records = append(records, []string{
			strconv.Itoa(r.Rank), r.RunID, r.Instrument, r.StrategyID, r.MAKind, r.SizingPolicy,
			csvDate(r.StartDate), csvDate(r.EndDate), strconv.Itoa(r.BarCount),
			r.PortfolioValue.String(), r.TotalProfit.String(), csvFloat(r.ROIPct), csvFloat(r.MaxDrawdownPct),
			strconv.Itoa(r.TradeCount), csvFloat(r.WinRate), r.Signal,
		})
	}
	return renderCSV(records)
}

// RenderTradesCSV renders trade rows as a CSV string.
func RenderTradesCSV(rows []TradeRow) (string, error) {
	records := [][]string{{
		"trade_id", "entry_fill_time", "entry_price", "exit_fill_time", "exit_price",
		"quantity", "realized_pnl", "return_pct", "outcome_class", "hold_bars",
	}}
	for _, t := range rows {
		records = append(records, []string{
			t.TradeID, csvDate(t.EntryFillTime), t.EntryPrice.String(), csvDate(t.ExitFillTime), t.ExitPrice.String(),
			t.Quantity.String(), t.RealizedPnL.String(), csvFloat(t.ReturnPct), t.OutcomeClass, strconv.Itoa(t.HoldBars),
		})
	}
	return renderCSV(records)
}

// RenderSweepCSV renders sweep rows as a CSV string. Failed runs have an empty rank.
func RenderSweepCSV(rows []SweepRow) (string, error) {
	records := [][]string{{
		"rank", "fast_window", "slow_window", "portfolio_value", "roi_pct", "max_drawdown_pct", "trade_count", "error",
	}}
	for _, r := range rows {
		rank, value := "", ""
		if r.Error == "" {
			rank = strconv.Itoa(r.Rank)
			value = r.PortfolioValue.String()
		}
		records = append(records, []string{
			rank, strconv.Itoa(r.FastWindow), strconv.Itoa(r.SlowWindow), value,
			csvFloat(r.ROIPct), csvFloat(r.MaxDrawdownPct), strconv.Itoa(r.TradeCount), r.Error,
		})
	}
	return renderCSV(records)
}

// RenderTraceCSV renders the per-bar trace of a run: bar, indicators, markers and account.
// Undefined moving averages are empty cells.
func RenderTraceCSV(rows []domain.AnnotatedRow) (string, error) {
	records := [][]string{{
		"date", "open", "high", "low", "close", "volume",
		"fast_ma", "slow_ma", "state", "transition",
		"action", "fill", "rejected", "position", "cash", "position_qty", "equity",
	}}
	for _, r := range rows {
		records = append(records, []string{
			csvDate(r.Timestamp), csvFloat(r.Open), csvFloat(r.High), csvFloat(r.Low), csvFloat(r.Close), csvFloat(r.Volume),
			csvOptFloat(r.FastMA), csvOptFloat(r.SlowMA), string(r.State), string(r.Transition),
			string(r.Action), string(r.FillSide), strconv.FormatBool(r.Rejected), string(r.Position),
			r.Cash.String(), r.PositionQty.String(), r.Equity.String(),
		})
	}
	return renderCSV(records)
}

func renderCSV(records [][]string) (string, error) {
	var sb strings.Builder
	if err := writeCSV(&sb, records); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeCSV(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func csvFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func csvOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return csvFloat(*v)
}

func csvDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
