package domain

import "github.com/shopspring/decimal"

// Sizing policy constants
const (
	SizingAllCash    = "all_cash"
	SizingFixedUnits = "fixed_units"
)

// SizingConfig selects how many units an entry order buys.
type SizingConfig struct {
	Policy string // "all_cash" | "fixed_units"
	Units  int64  // fixed_units only
}

// RunConfig represents the parameters of one backtest run.
type RunConfig struct {
	FastWindow     int
	SlowWindow     int
	MAKind         MAKind
	StartingCash   decimal.Decimal
	CommissionRate decimal.Decimal // fraction of notional, e.g. 0.001
	Sizing         SizingConfig
	LogTrace       bool // emit one debug log event per bar
}

// Defaults for RunConfig.
const (
	DefaultFastWindow = 10
	DefaultSlowWindow = 30
)

var (
	DefaultStartingCash   = decimal.NewFromInt(1_000_000)
	DefaultCommissionRate = decimal.RequireFromString("0.001")
)

// DefaultRunConfig returns the canonical run configuration.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		FastWindow:     DefaultFastWindow,
		SlowWindow:     DefaultSlowWindow,
		MAKind:         MAKindSMA,
		StartingCash:   DefaultStartingCash,
		CommissionRate: DefaultCommissionRate,
		Sizing:         SizingConfig{Policy: SizingAllCash},
	}
}
