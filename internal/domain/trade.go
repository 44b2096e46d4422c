package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord represents one closed round-trip (entry fill + exit fill).
// Corresponds to trade_records table in PostgreSQL.
type TradeRecord struct {
	TradeID    string // deterministic hash
	RunID      string // FK to backtest_runs
	Instrument string

	// Entry
	EntrySignalTime time.Time
	EntryFillTime   time.Time
	EntryPrice      decimal.Decimal
	Quantity        decimal.Decimal
	EntryCommission decimal.Decimal

	// Exit
	ExitSignalTime time.Time
	ExitFillTime   time.Time
	ExitPrice      decimal.Decimal
	ExitCommission decimal.Decimal

	// Outcome
	RealizedPnL  decimal.Decimal // exit proceeds - entry cost - both commissions
	ReturnPct    float64         // realized P&L / (entry cost + entry commission) * 100
	OutcomeClass string          // "WIN" | "LOSS"
	HoldBars     int             // bars between entry and exit fill
}

// Outcome class constants
const (
	OutcomeClassWin  = "WIN"
	OutcomeClassLoss = "LOSS"
)
