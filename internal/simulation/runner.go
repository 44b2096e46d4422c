// Package simulation runs backtests against stored series and persists their results.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crossover-lab/internal/backtest"
	"crossover-lab/internal/domain"
	"crossover-lab/internal/indicator"
	"crossover-lab/internal/metrics"
	"crossover-lab/internal/observability"
	"crossover-lab/internal/replay"
	"crossover-lab/internal/sizing"
	"crossover-lab/internal/storage"
)

// Outcome is a finished, persisted run.
type Outcome struct {
	Result      *backtest.Result
	Summary     *domain.RunSummary
	Performance metrics.Performance
	Existing    bool // run ID was already stored; only missing trades or trace were written
}

// Runner executes store-backed backtests.
type Runner struct {
	backtest   *backtest.Runner
	runStore   storage.RunStore
	tradeStore storage.TradeRecordStore
	traceStore storage.TraceStore
	metrics    *observability.Metrics
	backend    string
	logger     zerolog.Logger
	now        func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	BarStore         storage.BarStore
	RunStore         storage.RunStore
	TradeRecordStore storage.TradeRecordStore
	TraceStore       storage.TraceStore // optional
	Metrics          *observability.Metrics
	Backend          string // label for database metrics
	Logger           zerolog.Logger
	Clock            func() time.Time
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	m := opts.Metrics
	if m == nil {
		m = observability.DefaultMetrics
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	backend := opts.Backend
	if backend == "" {
		backend = "memory"
	}

	return &Runner{
		backtest:   backtest.NewRunner(replay.NewRunner(opts.BarStore), opts.Logger),
		runStore:   opts.RunStore,
		tradeStore: opts.TradeRecordStore,
		traceStore: opts.TraceStore,
		metrics:    m,
		backend:    backend,
		logger:     opts.Logger,
		now:        clock,
	}
}

// Run backtests an instrument and persists the result.
// Zero start and end select every stored bar. Steps:
//  1. Load and validate the series
//  2. Simulate
//  3. Compute performance
//  4. Persist run summary, trades and trace (an already stored run only gets what it is missing)
func (r *Runner) Run(ctx context.Context, instrument string, start, end time.Time, cfg domain.RunConfig) (*Outcome, error) {
	began := time.Now()

	out, err := r.run(ctx, instrument, start, end, cfg)
	elapsed := time.Since(began).Seconds()
	if err != nil {
		r.metrics.RecordRun("error", elapsed)
		r.metrics.RecordRunError(ErrorKind(err))
		r.logger.Error().Err(err).
			Str("instrument", instrument).
			Str("kind", ErrorKind(err)).
			Msg("backtest failed")
		return nil, err
	}

	r.metrics.RecordRun("ok", elapsed)
	r.metrics.LastSuccessfulRun.SetToCurrentTime()
	r.logger.Info().
		Str("run_id", out.Summary.RunID).
		Str("instrument", instrument).
		Int("bars", out.Summary.BarCount).
		Int("trades", out.Summary.TradeCount).
		Str("portfolio_value", out.Summary.PortfolioValue.String()).
		Float64("roi_pct", out.Summary.ROIPct).
		Bool("existing", out.Existing).
		Msg("backtest complete")

	return out, nil
}

func (r *Runner) run(ctx context.Context, instrument string, start, end time.Time, cfg domain.RunConfig) (*Outcome, error) {
	var (
		res *backtest.Result
		err error
	)
	if start.IsZero() && end.IsZero() {
		res, err = r.backtest.RunAll(ctx, instrument, cfg)
	} else {
		res, err = r.backtest.Run(ctx, instrument, start, end, cfg)
	}
	if err != nil {
		return nil, err
	}

	return r.Record(ctx, res)
}

// Record computes performance for a finished run and persists it.
// A run ID that is already stored is returned as Existing. Trades or trace
// missing from an earlier interrupted persist are written then.
func (r *Runner) Record(ctx context.Context, res *backtest.Result) (*Outcome, error) {
	r.recordResult(res)

	out := &Outcome{
		Result:      res,
		Summary:     metrics.Summarize(res, r.now()),
		Performance: metrics.Compute(res),
	}

	existing, err := r.runStore.GetByID(ctx, res.RunID)
	switch {
	case err == nil:
		out.Summary = existing
		out.Existing = true
		if err := r.repair(ctx, out.Result); err != nil {
			return nil, err
		}
		return out, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("lookup run %s: %w", res.RunID, err)
	}

	if err := r.persist(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// persist writes the run before its trades (trades reference the run).
func (r *Runner) persist(ctx context.Context, out *Outcome) error {
	res := out.Result

	if err := r.timed(ctx, "insert_run", func(ctx context.Context) error {
		return r.runStore.Insert(ctx, out.Summary)
	}); err != nil {
		return fmt.Errorf("persist run %s: %w", res.RunID, err)
	}

	trades := make([]*domain.TradeRecord, len(res.Trades))
	for i := range res.Trades {
		trades[i] = &res.Trades[i]
	}
	if err := r.insertTrades(ctx, res.RunID, trades); err != nil {
		return err
	}

	if r.traceStore != nil {
		return r.insertTrace(ctx, res)
	}
	return nil
}

// repair completes a stored run whose trades or trace were not all written.
func (r *Runner) repair(ctx context.Context, res *backtest.Result) error {
	stored, err := r.tradeStore.GetByRunID(ctx, res.RunID)
	if err != nil {
		return fmt.Errorf("lookup trades of %s: %w", res.RunID, err)
	}

	have := make(map[string]struct{}, len(stored))
	for _, t := range stored {
		have[t.TradeID] = struct{}{}
	}
	var missing []*domain.TradeRecord
	for i := range res.Trades {
		if _, ok := have[res.Trades[i].TradeID]; !ok {
			missing = append(missing, &res.Trades[i])
		}
	}
	if err := r.insertTrades(ctx, res.RunID, missing); err != nil {
		return err
	}

	traceMissing := false
	if r.traceStore != nil {
		_, err := r.traceStore.GetByRunID(ctx, res.RunID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			traceMissing = true
			if err := r.insertTrace(ctx, res); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("lookup trace of %s: %w", res.RunID, err)
		}
	}

	if len(missing) > 0 || traceMissing {
		r.logger.Warn().
			Str("run_id", res.RunID).
			Int("trades_written", len(missing)).
			Bool("trace_written", traceMissing).
			Msg("repaired partially persisted run")
	}
	return nil
}

func (r *Runner) insertTrades(ctx context.Context, runID string, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	if err := r.timed(ctx, "insert_trades", func(ctx context.Context) error {
		return r.tradeStore.InsertBulk(ctx, trades)
	}); err != nil {
		return fmt.Errorf("persist trades of %s: %w", runID, err)
	}
	return nil
}

func (r *Runner) insertTrace(ctx context.Context, res *backtest.Result) error {
	if err := r.timed(ctx, "insert_trace", func(ctx context.Context) error {
		return r.traceStore.InsertTrace(ctx, res.RunID, res.Rows)
	}); err != nil {
		return fmt.Errorf("persist trace of %s: %w", res.RunID, err)
	}
	return nil
}

func (r *Runner) timed(ctx context.Context, op string, fn func(context.Context) error) error {
	began := time.Now()
	err := fn(ctx)
	r.metrics.RecordDBQuery(r.backend, op, time.Since(began).Seconds(), err)
	return err
}

func (r *Runner) recordResult(res *backtest.Result) {
	r.metrics.BarsProcessed.Add(float64(len(res.Rows)))
	for _, f := range res.Fills {
		r.metrics.FillsTotal.WithLabelValues(string(f.Side)).Inc()
	}
	for _, row := range res.Rows {
		if row.Rejected {
			r.metrics.OrdersRejected.Inc()
		}
	}
	for _, t := range res.Trades {
		r.metrics.TradesClosed.WithLabelValues(t.OutcomeClass).Inc()
	}
}

// ErrorKind maps a run error to a short label for metrics and API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, indicator.ErrInvalidWindow), errors.Is(err, indicator.ErrUnknownMAKind),
		errors.Is(err, sizing.ErrUnknownPolicy), errors.Is(err, sizing.ErrInvalidUnits),
		errors.Is(err, backtest.ErrInvalidConfig):
		return "config"
	case errors.Is(err, replay.ErrInvalidSeries):
		return "series"
	case errors.Is(err, indicator.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, backtest.ErrOrderIntegrity):
		return "integrity"
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrDuplicateKey),
		errors.Is(err, storage.ErrInvalidInput):
		return "storage"
	default:
		return "other"
	}
}
