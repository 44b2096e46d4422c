package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"crossover-lab/internal/app"
	"crossover-lab/internal/config"
	"crossover-lab/internal/ingestion"
	"crossover-lab/internal/storage/backend"
)

func main() {
	flags := app.CommonFlags()
	flags = append(flags,
		&cli.StringFlag{Name: "instrument", Aliases: []string{"i"}, Usage: "instrument for a single file (default: file name)"},
		&cli.BoolFlag{Name: "migrate", Value: true, Usage: "apply schema migrations first"},
	)

	a := &cli.App{
		Name:      "ingest",
		Usage:     "import daily OHLCV CSV files into the bar store",
		ArgsUsage: "FILE.csv [FILE.csv ...]",
		Flags:     flags,
		Action:    run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.ShowAppHelp(c)
	}
	if c.IsSet("instrument") && c.NArg() > 1 {
		return errors.New("--instrument applies to a single file")
	}

	cfg, logger, err := app.Setup(c)
	if err != nil {
		return err
	}
	if cfg.Storage.Backend == config.BackendMemory {
		logger.Warn().Msg("memory backend: bars are validated but discarded on exit")
	}

	ctx := c.Context
	stores, cleanup, err := backend.Open(ctx, cfg.Storage, c.Bool("migrate"))
	if err != nil {
		return err
	}
	defer cleanup()

	var failed int
	total := 0
	for _, path := range c.Args().Slice() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		instrument := c.String("instrument")
		if instrument == "" {
			instrument = app.InstrumentFromPath(path)
		}

		mgr := ingestion.NewManager(ingestion.ManagerOptions{
			Source: ingestion.NewCSVSource(path),
			Store:  stores.Bars,
			Logger: logger.With().Str("file", path).Logger(),
		})
		n, err := mgr.Ingest(ctx, instrument)
		if err != nil {
			failed++
			logger.Error().Err(err).Str("file", path).Str("instrument", instrument).Msg("ingest failed")
			continue
		}
		total += n
	}

	logger.Info().
		Int("files", c.NArg()).
		Int("failed", failed).
		Int("bars", total).
		Str("backend", stores.Backend).
		Msg("ingest complete")

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, c.NArg())
	}
	return nil
}
