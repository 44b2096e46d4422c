package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report represents a backtest results report.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Instrument  string // empty for all instruments

	// Data Summary
	DataSummary DataSummary

	// Data Quality (stored trades vs run summaries)
	DataQuality DataQualitySection

	// Runs ranked by final portfolio value
	Runs []RunRow

	// Trades of the best run, by entry fill time
	BestRunTrades []TradeRow
}

// DataQualitySection contains integrity errors found while building the report.
type DataQualitySection struct {
	IntegrityErrors []string
}

// DataSummary contains data description.
type DataSummary struct {
	Instruments    int
	TotalRuns      int
	TotalTrades    int
	DateRangeStart time.Time // earliest run start
	DateRangeEnd   time.Time // latest run end
}

// RunRow represents one row in the run leaderboard.
type RunRow struct {
	Rank           int
	RunID          string
	Instrument     string
	StrategyID     string
	MAKind         string
	SizingPolicy   string
	StartDate      time.Time
	EndDate        time.Time
	BarCount       int
	PortfolioValue decimal.Decimal
	TotalProfit    decimal.Decimal
	ROIPct         float64
	MaxDrawdownPct float64
	TradeCount     int
	WinRate        float64
	Signal         string
}

// TradeRow represents one closed round-trip.
type TradeRow struct {
	TradeID       string
	EntryFillTime time.Time
	EntryPrice    decimal.Decimal
	ExitFillTime  time.Time
	ExitPrice     decimal.Decimal
	Quantity      decimal.Decimal
	RealizedPnL   decimal.Decimal
	ReturnPct     float64
	OutcomeClass  string
	HoldBars      int
}

// SweepRow represents one configuration of a parameter sweep.
type SweepRow struct {
	Rank           int // 0 for failed runs
	FastWindow     int
	SlowWindow     int
	PortfolioValue decimal.Decimal
	ROIPct         float64
	MaxDrawdownPct float64
	TradeCount     int
	Error          string
}
