// Package config exposes typed application configuration loaded from YAML,
// a best-effort .env file and CROSSOVER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"crossover-lab/internal/domain"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

// Environment overrides.
const (
	EnvPostgresDSN   = "CROSSOVER_POSTGRES_DSN"
	EnvClickhouseDSN = "CROSSOVER_CLICKHOUSE_DSN"
	EnvLogLevel      = "CROSSOVER_LOG_LEVEL"
	EnvMetricsAddr   = "CROSSOVER_METRICS_ADDR"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
	HTTPAddr    string `yaml:"http_addr"`

	// AllowedOrigins are browser origins accepted by the trace WebSocket; "*" accepts any.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Storage selects where bars and results live.
type Storage struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Sizing selects the entry quantity policy.
type Sizing struct {
	Policy string `yaml:"policy"`
	Units  int64  `yaml:"units"`
}

// Backtest holds the default run parameters.
// Money values are strings so they decode exactly.
type Backtest struct {
	FastWindow     int    `yaml:"fast_window"`
	SlowWindow     int    `yaml:"slow_window"`
	MAKind         string `yaml:"ma_kind"`
	StartingCash   string `yaml:"starting_cash"`
	CommissionRate string `yaml:"commission_rate"`
	Sizing         Sizing `yaml:"sizing"`
	LogTrace       bool   `yaml:"log_trace"`
}

// Sweep configures the fast/slow window grid.
type Sweep struct {
	FastMin     int `yaml:"fast_min"`
	FastMax     int `yaml:"fast_max"`
	SlowMin     int `yaml:"slow_min"`
	SlowMax     int `yaml:"slow_max"`
	Step        int `yaml:"step"`
	Concurrency int `yaml:"concurrency"`
}

// Config collects every configuration leaf.
type Config struct {
	App      App      `yaml:"app"`
	Storage  Storage  `yaml:"storage"`
	Backtest Backtest `yaml:"backtest"`
	Sweep    Sweep    `yaml:"sweep"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: App{
			Name:        "crossover-lab",
			LogLevel:    "info",
			MetricsAddr: ":9090",
			HTTPAddr:    ":8080",
		},
		Storage: Storage{
			Backend: BackendMemory,
		},
		Backtest: Backtest{
			FastWindow:     domain.DefaultFastWindow,
			SlowWindow:     domain.DefaultSlowWindow,
			MAKind:         string(domain.MAKindSMA),
			StartingCash:   domain.DefaultStartingCash.String(),
			CommissionRate: domain.DefaultCommissionRate.String(),
			Sizing:         Sizing{Policy: domain.SizingAllCash},
		},
		Sweep: Sweep{
			FastMin:     5,
			FastMax:     20,
			SlowMin:     20,
			SlowMax:     60,
			Step:        5,
			Concurrency: 4,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if path is
// non-empty), then .env (best-effort) and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	_ = godotenv.Load() // best-effort
	cfg.ApplyEnv()

	return cfg, nil
}

// ApplyEnv overrides values from CROSSOVER_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv(EnvClickhouseDSN); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.App.MetricsAddr = v
	}
}

// RunConfig converts the backtest section into a domain run configuration.
func (c *Config) RunConfig() (domain.RunConfig, error) {
	b := c.Backtest

	cash, err := decimal.NewFromString(b.StartingCash)
	if err != nil {
		return domain.RunConfig{}, fmt.Errorf("%w: starting_cash %q: %v", ErrInvalidConfig, b.StartingCash, err)
	}
	rate, err := decimal.NewFromString(b.CommissionRate)
	if err != nil {
		return domain.RunConfig{}, fmt.Errorf("%w: commission_rate %q: %v", ErrInvalidConfig, b.CommissionRate, err)
	}

	return domain.RunConfig{
		FastWindow:     b.FastWindow,
		SlowWindow:     b.SlowWindow,
		MAKind:         domain.MAKind(strings.ToLower(b.MAKind)),
		StartingCash:   cash,
		CommissionRate: rate,
		Sizing:         domain.SizingConfig{Policy: b.Sizing.Policy, Units: b.Sizing.Units},
		LogTrace:       b.LogTrace,
	}, nil
}

// Validate rejects values no run could use. Checked before any run starts.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			fail("storage.postgres_dsn is required for the postgres backend")
		}
	case BackendClickhouse:
		if c.Storage.ClickhouseDSN == "" {
			fail("storage.clickhouse_dsn is required for the clickhouse backend")
		}
		// runs and trades always live in postgres
		if c.Storage.PostgresDSN == "" {
			fail("storage.postgres_dsn is required for the clickhouse backend")
		}
	default:
		fail("unknown storage.backend %q", c.Storage.Backend)
	}

	b := c.Backtest
	if b.FastWindow <= 0 || b.SlowWindow <= 0 || b.FastWindow >= b.SlowWindow {
		fail("backtest windows must satisfy 0 < fast_window < slow_window, got %d/%d", b.FastWindow, b.SlowWindow)
	}
	if kind := domain.MAKind(strings.ToLower(b.MAKind)); !kind.IsValid() {
		fail("unknown backtest.ma_kind %q", b.MAKind)
	}
	switch b.Sizing.Policy {
	case domain.SizingAllCash:
	case domain.SizingFixedUnits:
		if b.Sizing.Units <= 0 {
			fail("backtest.sizing.units must be positive for fixed_units")
		}
	default:
		fail("unknown backtest.sizing.policy %q", b.Sizing.Policy)
	}

	if rc, err := c.RunConfig(); err != nil {
		errs = append(errs, err)
	} else {
		if !rc.StartingCash.IsPositive() {
			fail("backtest.starting_cash must be positive")
		}
		if rc.CommissionRate.IsNegative() || rc.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			fail("backtest.commission_rate must be in [0, 1)")
		}
	}

	s := c.Sweep
	if s.FastMin <= 0 || s.FastMax < s.FastMin || s.SlowMin <= 0 || s.SlowMax < s.SlowMin {
		fail("sweep ranges are empty: fast [%d, %d] slow [%d, %d]", s.FastMin, s.FastMax, s.SlowMin, s.SlowMax)
	}
	if s.Concurrency < 0 {
		fail("sweep.concurrency must not be negative")
	}

	return errors.Join(errs...)
}
