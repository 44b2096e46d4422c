package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"crossover-lab/internal/api"
	"crossover-lab/internal/app"
	"crossover-lab/internal/fixtures"
	"crossover-lab/internal/simulation"
	"crossover-lab/internal/storage/backend"
)

const (
	shutdownTimeout = 30 * time.Second
	demoInstrument  = "DEMO"
)

func main() {
	flags := app.CommonFlags()
	flags = append(flags, app.BacktestFlags()...)
	flags = append(flags, app.ServerFlags()...)
	flags = append(flags,
		&cli.BoolFlag{Name: "demo", Usage: "load a synthetic DEMO series into the bar store on start"},
	)

	a := &cli.App{
		Name:   "server",
		Usage:  "serve backtests, stored runs and run traces over HTTP",
		Flags:  flags,
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, logger, err := app.Setup(c)
	if err != nil {
		return err
	}
	defaults, err := cfg.RunConfig()
	if err != nil {
		return err
	}

	ctx := c.Context
	stores, cleanup, err := backend.Open(ctx, cfg.Storage, true)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Bool("demo") {
		if err := seedDemo(ctx, stores, logger); err != nil {
			return err
		}
	}

	runner := simulation.NewRunner(simulation.RunnerOptions{
		BarStore:         stores.Bars,
		RunStore:         stores.Runs,
		TradeRecordStore: stores.Trades,
		TraceStore:       stores.Trace,
		Backend:          stores.Backend,
		Logger:           logger,
	})

	handler := api.NewServer(api.Options{
		Runner:     runner,
		RunStore:   stores.Runs,
		TradeStore: stores.Trades,
		TraceStore: stores.Trace,
		Defaults:   defaults,
		Logger:     logger,

		AllowedOrigins: cfg.App.AllowedOrigins,
	}).Router()

	if cfg.App.MetricsAddr != cfg.App.HTTPAddr {
		app.ServeMetrics(ctx, cfg.App.MetricsAddr, logger)
	}

	srv := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.App.HTTPAddr).
			Str("backend", stores.Backend).
			Bool("trace_store", stores.Trace != nil).
			Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// seedDemo stores the synthetic crossover scenario unless DEMO bars already exist.
func seedDemo(ctx context.Context, stores *backend.Stores, logger zerolog.Logger) error {
	existing, err := stores.Bars.GetByInstrument(ctx, demoInstrument)
	if err != nil {
		return fmt.Errorf("check demo bars: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	bars := fixtures.Bars(demoInstrument, fixtures.ScenarioStart, fixtures.CrossoverScenario())
	if err := fixtures.LoadBars(ctx, stores.Bars, bars); err != nil {
		return fmt.Errorf("seed demo bars: %w", err)
	}
	logger.Info().
		Str("instrument", demoInstrument).
		Int("bars", len(bars)).
		Int("fast", fixtures.ScenarioFastWindow).
		Int("slow", fixtures.ScenarioSlowWindow).
		Msg("demo series loaded")
	return nil
}
