// Package app holds the flag set and bootstrapping shared by the command-line binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"crossover-lab/internal/config"
	"crossover-lab/internal/logging"
	"crossover-lab/internal/observability"
)

// CommonFlags selects config, logging and storage. Flags override the config file.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:      "config",
			Aliases:   []string{"c"},
			Usage:     "path to YAML config file",
			TakesFile: true,
			EnvVars:   []string{"CROSSOVER_CONFIG"},
		},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.BoolFlag{Name: "log-json", Usage: "log JSON lines instead of console output"},
		&cli.StringFlag{Name: "backend", Usage: "storage backend: memory, postgres or clickhouse"},
		&cli.StringFlag{Name: "postgres-dsn", Usage: "PostgreSQL connection string"},
		&cli.StringFlag{Name: "clickhouse-dsn", Usage: "ClickHouse connection string"},
	}
}

// ServerFlags select listen addresses.
func ServerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "http-addr", Usage: "HTTP API listen address"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "address for the Prometheus /metrics endpoint (empty disables)"},
		&cli.StringSliceFlag{Name: "allowed-origin", Usage: "browser origin allowed to open the trace WebSocket (repeatable, * for any)"},
	}
}

// BacktestFlags override the backtest section of the config.
func BacktestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "fast", Usage: "fast moving-average window"},
		&cli.IntFlag{Name: "slow", Usage: "slow moving-average window"},
		&cli.StringFlag{Name: "ma-kind", Usage: "moving-average kind: sma or ema"},
		&cli.StringFlag{Name: "cash", Usage: "starting cash"},
		&cli.StringFlag{Name: "commission", Usage: "commission rate per fill, e.g. 0.001"},
		&cli.StringFlag{Name: "sizing", Usage: "sizing policy: all_cash or fixed_units"},
		&cli.Int64Flag{Name: "units", Usage: "units per entry for fixed_units sizing"},
		&cli.BoolFlag{Name: "trace", Usage: "log one debug event per bar"},
	}
}

// RangeFlags select an inclusive date range of stored bars.
func RangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "instrument", Aliases: []string{"i"}, Usage: "instrument (ticker)"},
		&cli.StringFlag{Name: "start", Usage: "first day, YYYY-MM-DD (default: first stored bar)"},
		&cli.StringFlag{Name: "end", Usage: "last day, YYYY-MM-DD (default: last stored bar)"},
	}
}

// Setup loads and validates the config with flag overrides applied and builds the logger.
func Setup(c *cli.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	ApplyFlags(c, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}

	logger := logging.NewConsole(cfg.App.LogLevel, os.Stderr)
	if c.Bool("log-json") {
		logger = logging.New(cfg.App.LogLevel, os.Stderr)
	}
	return cfg, logger.With().Str("cmd", c.App.Name).Logger(), nil
}

// ApplyFlags copies every set flag onto cfg.
func ApplyFlags(c *cli.Context, cfg *config.Config) {
	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}

	setString("log-level", &cfg.App.LogLevel)
	setString("backend", &cfg.Storage.Backend)
	setString("postgres-dsn", &cfg.Storage.PostgresDSN)
	setString("clickhouse-dsn", &cfg.Storage.ClickhouseDSN)
	setString("metrics-addr", &cfg.App.MetricsAddr)
	setString("http-addr", &cfg.App.HTTPAddr)
	if c.IsSet("allowed-origin") {
		cfg.App.AllowedOrigins = c.StringSlice("allowed-origin")
	}

	setInt("fast", &cfg.Backtest.FastWindow)
	setInt("slow", &cfg.Backtest.SlowWindow)
	setString("ma-kind", &cfg.Backtest.MAKind)
	setString("cash", &cfg.Backtest.StartingCash)
	setString("commission", &cfg.Backtest.CommissionRate)
	setString("sizing", &cfg.Backtest.Sizing.Policy)
	if c.IsSet("units") {
		cfg.Backtest.Sizing.Units = c.Int64("units")
	}
	if c.IsSet("trace") {
		cfg.Backtest.LogTrace = c.Bool("trace")
	}

	setInt("fast-min", &cfg.Sweep.FastMin)
	setInt("fast-max", &cfg.Sweep.FastMax)
	setInt("slow-min", &cfg.Sweep.SlowMin)
	setInt("slow-max", &cfg.Sweep.SlowMax)
	setInt("step", &cfg.Sweep.Step)
	setInt("concurrency", &cfg.Sweep.Concurrency)
}

// ParseRange reads --start and --end. Unset bounds are zero, meaning "all bars".
func ParseRange(c *cli.Context) (start, end time.Time, err error) {
	if start, err = parseDay(c.String("start")); err != nil {
		return start, end, fmt.Errorf("--start: %w", err)
	}
	if end, err = parseDay(c.String("end")); err != nil {
		return start, end, fmt.Errorf("--end: %w", err)
	}
	if start.IsZero() != end.IsZero() {
		return start, end, errors.New("--start and --end must be given together")
	}
	if !start.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("--end %s is before --start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return start, end, nil
}

// InstrumentFromPath derives a ticker from a file name: data/spy.csv -> SPY.
func InstrumentFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ServeMetrics exposes /metrics on addr until ctx is done. Empty addr disables it.
func ServeMetrics(ctx context.Context, addr string, logger zerolog.Logger) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics endpoint stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
