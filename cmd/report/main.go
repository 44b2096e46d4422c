package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"crossover-lab/internal/app"
	"crossover-lab/internal/config"
	"crossover-lab/internal/observability"
	"crossover-lab/internal/reporting"
	"crossover-lab/internal/storage/backend"
	"crossover-lab/internal/verification"
)

func main() {
	flags := app.CommonFlags()
	flags = append(flags,
		&cli.StringFlag{Name: "instrument", Aliases: []string{"i"}, Usage: "report one instrument (default: all runs)"},
		&cli.StringFlag{Name: "output-dir", Value: "reports", Usage: "output directory for generated files"},
		&cli.BoolFlag{Name: "verify", Usage: "replay every stored run and fail on any divergence"},
	)

	a := &cli.App{
		Name:   "report",
		Usage:  "render Markdown and CSV reports of stored runs",
		Flags:  flags,
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "report:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, logger, err := app.Setup(c)
	if err != nil {
		return err
	}
	if cfg.Storage.Backend == config.BackendMemory {
		return errors.New("report needs a persistent backend (--backend postgres or clickhouse)")
	}

	ctx := c.Context
	stores, cleanup, err := backend.Open(ctx, cfg.Storage, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Bool("verify") {
		if err := verify(ctx, stores, logger); err != nil {
			return err
		}
	}

	report, err := reporting.NewGenerator(stores.Runs, stores.Trades).Generate(ctx, c.String("instrument"))
	if err != nil {
		return err
	}

	dir := c.String("output-dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	runsCSV, err := reporting.RenderRunsCSV(report.Runs)
	if err != nil {
		return err
	}
	tradesCSV, err := reporting.RenderTradesCSV(report.BestRunTrades)
	if err != nil {
		return err
	}

	files := map[string]string{
		"REPORT.md":  reporting.RenderMarkdown(report),
		"runs.csv":   runsCSV,
		"trades.csv": tradesCSV,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		logger.Info().Str("path", path).Msg("written")
	}

	observability.RecordReportGenerated()
	logger.Info().
		Int("runs", len(report.Runs)).
		Int("integrity_errors", len(report.DataQuality.IntegrityErrors)).
		Msg("report generated")
	return nil
}

func verify(ctx context.Context, stores *backend.Stores, logger zerolog.Logger) error {
	v := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		RunStore:   stores.Runs,
		TradeStore: stores.Trades,
		BarStore:   stores.Bars,
	})

	result, err := v.VerifyAll(ctx)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	for _, r := range result.Results {
		if r.Match {
			continue
		}
		for _, d := range r.Divergences {
			logger.Error().Str("run_id", r.RunID).Str("divergence", d.String()).Msg("replay diverged")
		}
	}
	logger.Info().
		Int("runs", result.TotalRuns).
		Int("matched", result.MatchedRuns).
		Int("divergent", result.DivergentRuns).
		Msg("replay verification")

	if result.DivergentRuns > 0 {
		return fmt.Errorf("%d of %d runs diverged on replay", result.DivergentRuns, result.TotalRuns)
	}
	return nil
}
