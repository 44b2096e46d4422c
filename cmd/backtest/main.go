package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"crossover-lab/internal/app"
	"crossover-lab/internal/config"
	"crossover-lab/internal/domain"
	"crossover-lab/internal/ingestion"
	"crossover-lab/internal/metrics"
	"crossover-lab/internal/reporting"
	"crossover-lab/internal/simulation"
	"crossover-lab/internal/storage/backend"
	"crossover-lab/internal/storage/memory"
)

func main() {
	flags := app.CommonFlags()
	flags = append(flags, app.BacktestFlags()...)
	flags = append(flags, app.RangeFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "csv", Usage: "read bars from a daily OHLCV CSV file instead of the bar store", TakesFile: true},
		&cli.BoolFlag{Name: "persist", Usage: "with --csv: persist the run to the configured backend"},
		&cli.BoolFlag{Name: "json", Usage: "print the result as JSON"},
		&cli.StringFlag{Name: "trace-csv", Usage: "write the annotated per-bar trace to this CSV file", TakesFile: true},
	)

	a := &cli.App{
		Name:   "backtest",
		Usage:  "run one moving-average crossover backtest",
		Flags:  flags,
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "backtest:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, logger, err := app.Setup(c)
	if err != nil {
		return err
	}
	runCfg, err := cfg.RunConfig()
	if err != nil {
		return err
	}
	start, end, err := app.ParseRange(c)
	if err != nil {
		return err
	}

	csvPath := c.String("csv")
	instrument := c.String("instrument")
	if instrument == "" && csvPath != "" {
		instrument = app.InstrumentFromPath(csvPath)
	}
	if instrument == "" {
		return errors.New("--instrument is required without --csv")
	}

	ctx := c.Context
	storageCfg := cfg.Storage
	if csvPath != "" && !c.Bool("persist") {
		storageCfg = config.Storage{Backend: config.BackendMemory}
	}

	stores, cleanup, err := backend.Open(ctx, storageCfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	if csvPath != "" {
		// CSV bars never reach the configured bar store
		stores.Bars = memory.NewBarStore()
		mgr := ingestion.NewManager(ingestion.ManagerOptions{
			Source: ingestion.NewCSVSource(csvPath),
			Store:  stores.Bars,
			Logger: logger,
		})
		if _, err := mgr.Ingest(ctx, instrument); err != nil {
			return fmt.Errorf("load %s: %w", csvPath, err)
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

	out, err := runner.Run(ctx, instrument, start, end, runCfg)
	if err != nil {
		return err
	}

	if path := c.String("trace-csv"); path != "" {
		trace, err := reporting.RenderTraceCSV(out.Result.Rows)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(trace), 0o644); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
		logger.Info().Str("path", path).Int("rows", len(out.Result.Rows)).Msg("trace written")
	}

	if c.Bool("json") {
		return printJSON(out)
	}
	printMarkdown(out, logger)
	return nil
}

type jsonOutput struct {
	RunID       string                 `json:"run_id"`
	StrategyID  string                 `json:"strategy_id"`
	Existing    bool                   `json:"existing"`
	Snapshot    domain.AccountSnapshot `json:"snapshot"`
	Performance metrics.Performance    `json:"performance"`
	Trades      []reporting.TradeRow   `json:"trades"`
}

func printJSON(out *simulation.Outcome) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonOutput{
		RunID:       out.Result.RunID,
		StrategyID:  out.Result.StrategyID,
		Existing:    out.Existing,
		Snapshot:    out.Result.Snapshot,
		Performance: out.Performance,
		Trades:      reporting.TradeRows(tradePtrs(out.Result.Trades)),
	})
}

func printMarkdown(out *simulation.Outcome, logger zerolog.Logger) {
	res := out.Result
	fmt.Print(reporting.RenderSnapshotMarkdown(res.StrategyID, res.Snapshot, reporting.TradeRows(tradePtrs(res.Trades))))
	fmt.Printf("\nROI: %.4f%%  Max drawdown: %.4f%%  Win rate: %.2f%%\n",
		out.Performance.ROIPct, out.Performance.MaxDrawdownPct, out.Performance.WinRate*100)

	logger.Debug().Str("run_id", res.RunID).Bool("existing", out.Existing).Msg("result printed")
}

func tradePtrs(trades []domain.TradeRecord) []*domain.TradeRecord {
	ptrs := make([]*domain.TradeRecord, len(trades))
	for i := range trades {
		ptrs[i] = &trades[i]
	}
	return ptrs
}
