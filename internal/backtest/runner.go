// Package backtest runs the crossover strategy over a price series with next-bar-open execution.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/idhash"
	"crossover-lab/internal/replay"
	"crossover-lab/internal/sizing"
	"crossover-lab/internal/strategy"
)

// Result holds the output of one run.
type Result struct {
	RunID      string
	StrategyID string
	Instrument string
	StartDate  time.Time
	EndDate    time.Time
	Config     domain.RunConfig

	Rows     []domain.AnnotatedRow // one per bar
	Fills    []domain.Fill
	Trades   []domain.TradeRecord // closed round-trips
	Snapshot domain.AccountSnapshot
}

// ValidateConfig builds the strategy and sizer for cfg, rejecting bad parameters.
// Window errors are reported first.
func ValidateConfig(cfg domain.RunConfig) (strategy.Strategy, sizing.Sizer, error) {
	strat, err := strategy.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	sizer, err := sizing.FromConfig(cfg.Sizing)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.StartingCash.IsPositive() {
		return nil, nil, fmt.Errorf("%w: starting cash must be positive, got %s", ErrInvalidConfig, cfg.StartingCash)
	}
	if cfg.CommissionRate.IsNegative() || cfg.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, nil, fmt.Errorf("%w: commission rate must be in [0, 1), got %s", ErrInvalidConfig, cfg.CommissionRate)
	}
	return strat, sizer, nil
}

// Run backtests cfg over bars. Checks run in order: config, series, data length.
// On any error no partial result is returned. bars are not modified.
func Run(bars []*domain.Bar, cfg domain.RunConfig, logger zerolog.Logger) (*Result, error) {
	strat, sizer, err := ValidateConfig(cfg)
	if err != nil {
		return nil, err
	}
	return runWith(bars, cfg, strat, sizer, logger)
}

func runWith(bars []*domain.Bar, cfg domain.RunConfig, strat strategy.Strategy, sizer sizing.Sizer, logger zerolog.Logger) (*Result, error) {
	if err := replay.ValidateSeries(bars); err != nil {
		return nil, err
	}

	rows, err := strat.Indicators(bars)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(cfg, strat, sizer, logger.With().Str("strategy", strat.ID()).Logger())
	if err := replay.Replay(bars, rows, engine); err != nil {
		return nil, err
	}

	first, last := bars[0], bars[len(bars)-1]
	res := &Result{
		RunID:      idhash.ComputeRunID(first.Instrument, first.Timestamp, last.Timestamp, len(bars), cfg),
		StrategyID: strat.ID(),
		Instrument: first.Instrument,
		StartDate:  first.Timestamp,
		EndDate:    last.Timestamp,
		Config:     cfg,
		Rows:       engine.rows,
		Fills:      engine.fills,
		Trades:     engine.trades,
		Snapshot:   engine.Snapshot(),
	}
	for i := range res.Trades {
		t := &res.Trades[i]
		t.RunID = res.RunID
		t.Instrument = res.Instrument
		t.TradeID = idhash.ComputeTradeID(res.RunID, t.EntryFillTime)
	}

	logger.Debug().
		Str("run_id", res.RunID).
		Int("bars", len(bars)).
		Int("fills", len(res.Fills)).
		Str("portfolio_value", res.Snapshot.PortfolioValue.String()).
		Msg("backtest complete")

	return res, nil
}

// Runner loads series from storage and backtests them.
type Runner struct {
	replayRunner *replay.Runner
	logger       zerolog.Logger
}

// NewRunner creates a new backtest runner.
func NewRunner(replayRunner *replay.Runner, logger zerolog.Logger) *Runner {
	return &Runner{
		replayRunner: replayRunner,
		logger:       logger,
	}
}

// Run backtests an instrument within [start, end] (inclusive).
// Config is validated before anything is loaded.
func (r *Runner) Run(ctx context.Context, instrument string, start, end time.Time, cfg domain.RunConfig) (*Result, error) {
	if _, _, err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	bars, err := r.replayRunner.Load(ctx, instrument, start, end)
	if err != nil {
		return nil, err
	}

	return Run(bars, cfg, r.logger)
}

// RunAll backtests every stored bar of an instrument.
func (r *Runner) RunAll(ctx context.Context, instrument string, cfg domain.RunConfig) (*Result, error) {
	if _, _, err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	bars, err := r.replayRunner.LoadAll(ctx, instrument)
	if err != nil {
		return nil, err
	}

	return Run(bars, cfg, r.logger)
}
