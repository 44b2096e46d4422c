package reporting

import (
	"fmt"
	"strings"
	"time"

	"crossover-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Instrument != "" {
		sb.WriteString(fmt.Sprintf("Instrument: %s\n\n", r.Instrument))
	}

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Instruments | %d |\n", r.DataSummary.Instruments))
	sb.WriteString(fmt.Sprintf("| Runs | %d |\n", r.DataSummary.TotalRuns))
	sb.WriteString(fmt.Sprintf("| Closed Trades | %d |\n", r.DataSummary.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Date Range Start | %s |\n", formatDate(r.DataSummary.DateRangeStart)))
	sb.WriteString(fmt.Sprintf("| Date Range End | %s |\n", formatDate(r.DataSummary.DateRangeEnd)))
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if len(r.DataQuality.IntegrityErrors) > 0 {
		sb.WriteString("### Integrity Errors\n\n")
		for _, err := range r.DataQuality.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", err))
		}
	} else {
		sb.WriteString("Stored trades match every run summary.\n")
	}
	sb.WriteString("\n")

	// Leaderboard
	sb.WriteString("## Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| # | Strategy | Instrument | Range | Bars | Portfolio | Profit | ROI% | MaxDD% | Trades | WinRate | Signal |\n")
		sb.WriteString("|---|----------|------------|-------|------|-----------|--------|------|--------|--------|---------|--------|\n")
		for _, run := range r.Runs {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s..%s | %d | %s | %s | %.2f | %.2f | %d | %.4f | %s |\n",
				run.Rank, run.StrategyID, run.Instrument,
				formatDate(run.StartDate), formatDate(run.EndDate), run.BarCount,
				run.PortfolioValue.StringFixed(2), run.TotalProfit.StringFixed(2),
				run.ROIPct, run.MaxDrawdownPct, run.TradeCount, run.WinRate, run.Signal))
		}
	} else {
		sb.WriteString("No runs available.\n")
	}
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades of Best Run\n\n")
	sb.WriteString(renderTradeTable(r.BestRunTrades))

	return sb.String()
}

// RenderSweepMarkdown renders sweep results as Markdown string.
func RenderSweepMarkdown(instrument string, bars int, rows []SweepRow) string {
	var sb strings.Builder

	sb.WriteString("# Parameter Sweep\n\n")
	sb.WriteString(fmt.Sprintf("Instrument: %s | Bars: %d | Configurations: %d\n\n", instrument, bars, len(rows)))

	if len(rows) == 0 {
		sb.WriteString("No configurations.\n")
		return sb.String()
	}

	sb.WriteString("| # | Fast | Slow | Portfolio | ROI% | MaxDD% | Trades | Error |\n")
	sb.WriteString("|---|------|------|-----------|------|--------|--------|-------|\n")
	for _, row := range rows {
		rank, value := "-", "-"
		if row.Error == "" {
			rank = fmt.Sprintf("%d", row.Rank)
			value = row.PortfolioValue.StringFixed(2)
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %.2f | %.2f | %d | %s |\n",
			rank, row.FastWindow, row.SlowWindow, value,
			row.ROIPct, row.MaxDrawdownPct, row.TradeCount, row.Error))
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderSnapshotMarkdown renders the account state and signal of one run.
func RenderSnapshotMarkdown(strategyID string, snap domain.AccountSnapshot, trades []TradeRow) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", strategyID))
	sb.WriteString(fmt.Sprintf("**Signal: %s**\n\n", snap.Signal))
	sb.WriteString("| Account | Value |\n")
	sb.WriteString("|---------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Starting Cash | %s |\n", snap.StartingCash.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Cash | %s |\n", snap.Cash.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Position | %s |\n", snap.PositionQty.String()))
	sb.WriteString(fmt.Sprintf("| Position Value | %s |\n", snap.PositionValue.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Portfolio Value | %s |\n", snap.PortfolioValue.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Realized P&L | %s |\n", snap.RealizedPnL.StringFixed(2)))
	if o := snap.PendingOrder; o != nil {
		sb.WriteString(fmt.Sprintf("| Unfilled Order | %s %s signaled %s |\n", o.Side, o.Quantity, formatDate(o.SignalTime)))
	}
	sb.WriteString("\n## Trades\n\n")
	sb.WriteString(renderTradeTable(trades))

	return sb.String()
}

func renderTradeTable(trades []TradeRow) string {
	if len(trades) == 0 {
		return "No closed trades.\n"
	}

	var sb strings.Builder
	sb.WriteString("| Entry | Entry Price | Exit | Exit Price | Qty | P&L | Return% | Outcome | Bars |\n")
	sb.WriteString("|-------|-------------|------|------------|-----|-----|---------|---------|------|\n")
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %.4f | %s | %d |\n",
			formatDate(t.EntryFillTime), t.EntryPrice.String(),
			formatDate(t.ExitFillTime), t.ExitPrice.String(),
			t.Quantity.String(), t.RealizedPnL.StringFixed(2),
			t.ReturnPct, t.OutcomeClass, t.HoldBars))
	}
	return sb.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.DateOnly)
}
