package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionState is the state of the single-position state machine.
type PositionState string

const (
	StateFlat              PositionState = "flat"
	StateOrderPendingEntry PositionState = "order_pending_entry"
	StateLong              PositionState = "long"
	StateOrderPendingExit  PositionState = "order_pending_exit"
)

// SignalClass is the current-signal classification shown to users.
type SignalClass string

const (
	SignalBuy     SignalClass = "BUY"
	SignalSell    SignalClass = "SELL"
	SignalNeutral SignalClass = "NEUTRAL"
)

// AnnotatedRow is one bar of the run trace: input bar, indicators, and bookkeeping.
type AnnotatedRow struct {
	Bar
	FastMA     *float64
	SlowMA     *float64
	State      CrossoverState
	Transition Transition

	Action   Side // order signaled on this bar ("" if none)
	FillSide Side // order settled on this bar ("" if none)
	Rejected bool // pending order could not be afforded at settlement

	Position    PositionState   // state after processing this bar
	Cash        decimal.Decimal // cash after processing this bar
	PositionQty decimal.Decimal
	Equity      decimal.Decimal // cash + position * close
}

// AccountSnapshot is the final state of the account after a run.
type AccountSnapshot struct {
	StartingCash   decimal.Decimal
	Cash           decimal.Decimal
	PositionQty    decimal.Decimal
	PositionValue  decimal.Decimal // position * last close
	PortfolioValue decimal.Decimal // cash + position value
	RealizedPnL    decimal.Decimal
	Signal         SignalClass
	PendingOrder   *Order // order signaled on the last bar, never settled
}

// RunSummary represents a persisted backtest run.
// Corresponds to backtest_runs table in PostgreSQL.
type RunSummary struct {
	RunID      string // deterministic hash of instrument, range and config
	Instrument string
	StartDate  time.Time
	EndDate    time.Time
	BarCount   int

	// Config
	FastWindow     int
	SlowWindow     int
	MAKind         MAKind
	SizingPolicy   string
	SizingUnits    int64 // fixed_units only
	StartingCash   decimal.Decimal
	CommissionRate decimal.Decimal

	// Account
	EndingCash     decimal.Decimal
	PositionValue  decimal.Decimal
	PortfolioValue decimal.Decimal
	RealizedPnL    decimal.Decimal
	Signal         SignalClass

	// Performance
	TradeCount     int
	Wins           int
	Losses         int
	WinRate        float64
	TotalProfit    decimal.Decimal // portfolio value - starting cash
	ROIPct         float64
	MaxDrawdownPct float64

	CreatedAt time.Time
}

// Config reconstructs the run configuration the summary was produced with.
func (r *RunSummary) Config() RunConfig {
	return RunConfig{
		FastWindow:     r.FastWindow,
		SlowWindow:     r.SlowWindow,
		MAKind:         r.MAKind,
		StartingCash:   r.StartingCash,
		CommissionRate: r.CommissionRate,
		Sizing:         SizingConfig{Policy: r.SizingPolicy, Units: r.SizingUnits},
	}
}
