package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"crossover-lab/internal/app"
	"crossover-lab/internal/config"
	"crossover-lab/internal/ingestion"
	"crossover-lab/internal/observability"
	"crossover-lab/internal/reporting"
	"crossover-lab/internal/simulation"
	"crossover-lab/internal/storage/backend"
	"crossover-lab/internal/storage/memory"
	"crossover-lab/internal/sweep"
)

func main() {
	flags := app.CommonFlags()
	flags = append(flags, app.BacktestFlags()...)
	flags = append(flags, app.RangeFlags()...)
	flags = append(flags, app.ServerFlags()...)
	flags = append(flags,
		&cli.IntFlag{Name: "fast-min", Usage: "smallest fast window"},
		&cli.IntFlag{Name: "fast-max", Usage: "largest fast window"},
		&cli.IntFlag{Name: "slow-min", Usage: "smallest slow window"},
		&cli.IntFlag{Name: "slow-max", Usage: "largest slow window"},
		&cli.IntFlag{Name: "step", Usage: "window increment"},
		&cli.IntFlag{Name: "concurrency", Usage: "runs in flight"},
		&cli.StringFlag{Name: "csv", Usage: "read bars from a daily OHLCV CSV file instead of the bar store", TakesFile: true},
		&cli.BoolFlag{Name: "persist", Usage: "persist every run to the configured backend"},
		&cli.StringFlag{Name: "out", Usage: "write the ranking to this file (.csv or .md)", TakesFile: true},
		&cli.DurationFlag{Name: "timeout", Usage: "stop launching new runs after this long (0 = no limit)"},
	)

	a := &cli.App{
		Name:   "sweep",
		Usage:  "backtest a grid of fast/slow windows over one series and rank the results",
		Flags:  flags,
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "sweep:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, logger, err := app.Setup(c)
	if err != nil {
		return err
	}
	base, err := cfg.RunConfig()
	if err != nil {
		return err
	}
	start, end, err := app.ParseRange(c)
	if err != nil {
		return err
	}

	grid := sweep.Grid{
		FastMin: cfg.Sweep.FastMin,
		FastMax: cfg.Sweep.FastMax,
		SlowMin: cfg.Sweep.SlowMin,
		SlowMax: cfg.Sweep.SlowMax,
		Step:    cfg.Sweep.Step,
	}
	configs, err := grid.Configs(base)
	if err != nil {
		return err
	}

	instrument := c.String("instrument")
	if instrument == "" {
		return errors.New("--instrument is required")
	}

	ctx := c.Context
	if timeout := c.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if c.IsSet("metrics-addr") {
		app.ServeMetrics(ctx, cfg.App.MetricsAddr, logger)
	}

	storageCfg := cfg.Storage
	if c.String("csv") != "" && !c.Bool("persist") {
		storageCfg = config.Storage{Backend: config.BackendMemory}
	}
	stores, cleanup, err := backend.Open(ctx, storageCfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	if path := c.String("csv"); path != "" {
		stores.Bars = memory.NewBarStore()
		mgr := ingestion.NewManager(ingestion.ManagerOptions{
			Source: ingestion.NewCSVSource(path),
			Store:  stores.Bars,
			Logger: logger,
		})
		if _, err := mgr.Ingest(ctx, instrument); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}

	var recorder *simulation.Runner
	if c.Bool("persist") {
		recorder = simulation.NewRunner(simulation.RunnerOptions{
			BarStore:         stores.Bars,
			RunStore:         stores.Runs,
			TradeRecordStore: stores.Trades,
			Backend:          stores.Backend,
			Logger:           logger,
		})
	}

	sweeper := sweep.New(sweep.Options{
		BarStore:    stores.Bars,
		Recorder:    recorder,
		Concurrency: cfg.Sweep.Concurrency,
		Logger:      logger,
	})

	logger.Info().
		Str("instrument", instrument).
		Int("configs", len(configs)).
		Int("concurrency", cfg.Sweep.Concurrency).
		Msg("sweep starting")

	report, err := sweeper.RunStored(ctx, instrument, start, end, configs)
	if report == nil {
		return err
	}
	if err != nil {
		logger.Warn().Err(err).
			Int("completed", len(report.Ranked)+len(report.Failed)).
			Int("planned", len(configs)).
			Msg("sweep interrupted, reporting partial results")
	}

	for _, msg := range report.FailureMessages() {
		logger.Warn().Str("failure", msg).Msg("run failed")
	}

	rows := reporting.SweepRows(report)
	if path := c.String("out"); path != "" {
		if err := writeReport(path, instrument, report.Bars, rows); err != nil {
			return err
		}
		logger.Info().Str("path", path).Msg("sweep report written")
	} else {
		fmt.Print(reporting.RenderSweepMarkdown(instrument, report.Bars, rows))
	}

	if best := report.Best(); best != nil {
		logger.Info().
			Int("fast", best.Config.FastWindow).
			Int("slow", best.Config.SlowWindow).
			Str("portfolio_value", best.Summary.PortfolioValue.String()).
			Dur("duration", report.Duration.Round(time.Millisecond)).
			Msg("best configuration")
	}

	return err
}

func writeReport(path, instrument string, bars int, rows []reporting.SweepRow) error {
	content := reporting.RenderSweepMarkdown(instrument, bars, rows)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		var err error
		if content, err = reporting.RenderSweepCSV(rows); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	observability.RecordReportGenerated()
	return nil
}
