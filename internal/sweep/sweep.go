// Package sweep runs many independent backtests of one series in parallel.
// Flow: load series once → fan out runs → record → rank by final portfolio value.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"crossover-lab/internal/backtest"
	"crossover-lab/internal/domain"
	"crossover-lab/internal/metrics"
	"crossover-lab/internal/observability"
	"crossover-lab/internal/replay"
	"crossover-lab/internal/simulation"
	"crossover-lab/internal/storage"
)

// Entry is the outcome of one configuration.
type Entry struct {
	Config  domain.RunConfig
	Summary *domain.RunSummary // nil when Err is set
	Err     error
}

// Report contains results from a sweep.
type Report struct {
	Instrument string
	Bars       int
	Ranked     []Entry // successful runs, best portfolio value first
	Failed     []Entry // in config order
	Duration   time.Duration
}

// Best returns the top-ranked entry, or nil if every run failed.
func (r *Report) Best() *Entry {
	if len(r.Ranked) == 0 {
		return nil
	}
	return &r.Ranked[0]
}

// Sweeper coordinates parameter sweeps.
type Sweeper struct {
	loader      *replay.Runner
	recorder    *simulation.Runner // optional; nil skips persistence
	concurrency int
	metrics     *observability.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

// Options for creating a Sweeper.
type Options struct {
	BarStore storage.BarStore

	// Recorder persists each finished run. Optional.
	Recorder *simulation.Runner

	Concurrency int // defaults to 4
	Metrics     *observability.Metrics
	Logger      zerolog.Logger
	Clock       func() time.Time
}

// New creates a new Sweeper.
func New(opts Options) *Sweeper {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	m := opts.Metrics
	if m == nil {
		m = observability.DefaultMetrics
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	var loader *replay.Runner
	if opts.BarStore != nil {
		loader = replay.NewRunner(opts.BarStore)
	}

	return &Sweeper{
		loader:      loader,
		recorder:    opts.Recorder,
		concurrency: concurrency,
		metrics:     m,
		logger:      opts.Logger,
		now:         clock,
	}
}

// RunStored loads an instrument's series once and sweeps it.
// Zero start and end select every stored bar.
func (s *Sweeper) RunStored(ctx context.Context, instrument string, start, end time.Time, configs []domain.RunConfig) (*Report, error) {
	if s.loader == nil {
		return nil, fmt.Errorf("sweep %s: no bar store configured", instrument)
	}

	var (
		bars []*domain.Bar
		err  error
	)
	if start.IsZero() && end.IsZero() {
		bars, err = s.loader.LoadAll(ctx, instrument)
	} else {
		bars, err = s.loader.Load(ctx, instrument, start, end)
	}
	if err != nil {
		return nil, err
	}

	return s.Run(ctx, bars, configs)
}

// Run backtests every config over the same bars with bounded concurrency.
// The series is shared read-only. Per-run failures are collected in Report.Failed.
// Cancellation is checked before each run starts; a run in progress always completes.
// On cancellation the partial report is returned together with ctx.Err().
func (s *Sweeper) Run(ctx context.Context, bars []*domain.Bar, configs []domain.RunConfig) (*Report, error) {
	if err := replay.ValidateSeries(bars); err != nil {
		return nil, err
	}

	began := time.Now()
	s.metrics.SweepsInFlight.Inc()
	defer s.metrics.SweepsInFlight.Dec()

	report := &Report{
		Instrument: bars[0].Instrument,
		Bars:       len(bars),
	}

	entries := make([]Entry, len(configs))
	done := make([]bool, len(configs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, cfg := range configs {
		if err := gctx.Err(); err != nil {
			break
		}

		i, cfg := i, cfg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			entry := s.runOne(gctx, bars, cfg)

			mu.Lock()
			entries[i] = entry
			done[i] = true
			mu.Unlock()

			s.metrics.SweepRunsDone.Inc()
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	for i, e := range entries {
		if !done[i] {
			continue
		}
		if e.Err != nil {
			report.Failed = append(report.Failed, e)
			continue
		}
		report.Ranked = append(report.Ranked, e)
	}
	rankEntries(report.Ranked)
	report.Duration = time.Since(began)

	status := "ok"
	if err != nil {
		status = "canceled"
	}
	s.metrics.RecordSweep(status, report.Duration.Seconds())

	s.logger.Info().
		Str("instrument", report.Instrument).
		Int("configs", len(configs)).
		Int("succeeded", len(report.Ranked)).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Str("status", status).
		Msg("sweep complete")

	return report, err
}

func (s *Sweeper) runOne(ctx context.Context, bars []*domain.Bar, cfg domain.RunConfig) Entry {
	entry := Entry{Config: cfg}

	res, err := backtest.Run(bars, cfg, s.logger)
	if err != nil {
		entry.Err = err
		s.logger.Debug().Err(err).
			Int("fast", cfg.FastWindow).
			Int("slow", cfg.SlowWindow).
			Msg("sweep run failed")
		return entry
	}

	if s.recorder == nil {
		entry.Summary = metrics.Summarize(res, s.now())
		return entry
	}

	out, err := s.recorder.Record(ctx, res)
	if err != nil {
		entry.Err = fmt.Errorf("record fast=%d slow=%d: %w", cfg.FastWindow, cfg.SlowWindow, err)
		return entry
	}
	entry.Summary = out.Summary
	return entry
}

// rankEntries orders successful entries the same way metrics.Rank orders summaries.
func rankEntries(entries []Entry) {
	summaries := make([]*domain.RunSummary, len(entries))
	index := make(map[*domain.RunSummary]Entry, len(entries))
	for i, e := range entries {
		summaries[i] = e.Summary
		index[e.Summary] = e
	}
	ranked := metrics.Rank(summaries)
	for i, s := range ranked {
		entries[i] = index[s]
	}
}

// FailureMessages returns one line per failed run, in config order.
func (r *Report) FailureMessages() []string {
	msgs := make([]string, len(r.Failed))
	for i, e := range r.Failed {
		msgs[i] = fmt.Sprintf("fast=%d slow=%d: %v", e.Config.FastWindow, e.Config.SlowWindow, e.Err)
	}
	return msgs
}
