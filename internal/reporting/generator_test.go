package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/fixtures"
	"crossover-lab/internal/observability"
	"crossover-lab/internal/simulation"
	"crossover-lab/internal/storage/memory"
	"crossover-lab/internal/sweep"
)

var reportTime = time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)

func setupTestData(t *testing.T) (*memory.RunStore, *memory.TradeRecordStore) {
	t.Helper()
	ctx := context.Background()

	bars := memory.NewBarStore()
	runs := memory.NewRunStore()
	trades := memory.NewTradeRecordStore()

	if err := fixtures.LoadBars(ctx, bars, fixtures.Bars("TEST", fixtures.ScenarioStart, fixtures.CrossoverScenario())); err != nil {
		t.Fatalf("load bars: %v", err)
	}

	runner := simulation.NewRunner(simulation.RunnerOptions{
		BarStore:         bars,
		RunStore:         runs,
		TradeRecordStore: trades,
		Metrics:          observability.NewMetrics("report_test", prometheus.NewRegistry()),
		Logger:           zerolog.Nop(),
		Clock:            func() time.Time { return reportTime },
	})

	for _, fast := range []int{3, 5} {
		cfg := domain.DefaultRunConfig()
		cfg.FastWindow = fast
		cfg.SlowWindow = fixtures.ScenarioSlowWindow
		if _, err := runner.Run(ctx, "TEST", time.Time{}, time.Time{}, cfg); err != nil {
			t.Fatalf("run fast=%d: %v", fast, err)
		}
	}
	return runs, trades
}

func TestGenerator_Generate(t *testing.T) {
	runs, trades := setupTestData(t)
	gen := NewGenerator(runs, trades).WithClock(func() time.Time { return reportTime })

	report, err := gen.Generate(context.Background(), "TEST")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !report.GeneratedAt.Equal(reportTime) {
		t.Errorf("expected injected clock, got %s", report.GeneratedAt)
	}
	if report.DataSummary.TotalRuns != 2 || report.DataSummary.Instruments != 1 {
		t.Errorf("unexpected summary: %+v", report.DataSummary)
	}
	if !report.DataSummary.DateRangeStart.Equal(fixtures.ScenarioStart) {
		t.Errorf("unexpected range start %s", report.DataSummary.DateRangeStart)
	}
	if len(report.DataQuality.IntegrityErrors) != 0 {
		t.Errorf("unexpected integrity errors: %v", report.DataQuality.IntegrityErrors)
	}
	if len(report.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(report.Runs))
	}
	if report.Runs[0].Rank != 1 || report.Runs[1].Rank != 2 {
		t.Errorf("ranks not assigned in order")
	}
	if report.Runs[0].PortfolioValue.LessThan(report.Runs[1].PortfolioValue) {
		t.Errorf("runs not ranked by portfolio value")
	}
	if !strings.HasPrefix(report.Runs[0].StrategyID, "SMA_CROSS_") {
		t.Errorf("unexpected strategy id %s", report.Runs[0].StrategyID)
	}
}

func TestGenerator_NoRuns(t *testing.T) {
	gen := NewGenerator(memory.NewRunStore(), memory.NewTradeRecordStore())
	if _, err := gen.Generate(context.Background(), ""); !errors.Is(err, ErrNoRuns) {
		t.Errorf("expected ErrNoRuns, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	runs, trades := setupTestData(t)
	report, err := NewGenerator(runs, trades).WithClock(func() time.Time { return reportTime }).Generate(context.Background(), "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	md := RenderMarkdown(report)

	for _, want := range []string{
		"# Backtest Report",
		"Generated: 2024-07-01T09:30:00Z",
		"## Data Summary",
		"| Runs | 2 |",
		"## Data Quality",
		"## Runs",
		"SMA_CROSS_5_20",
		"## Trades of Best Run",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "Instrument: ") {
		t.Error("all-instrument report should not name an instrument")
	}
}

func TestRenderSnapshotMarkdown_PendingOrder(t *testing.T) {
	snap := domain.AccountSnapshot{
		StartingCash:   domain.DefaultStartingCash,
		Cash:           domain.DefaultStartingCash,
		PortfolioValue: domain.DefaultStartingCash,
		Signal:         domain.SignalBuy,
		PendingOrder: &domain.Order{
			Side:       domain.SideBuy,
			Quantity:   domain.DefaultStartingCash.Div(domain.DefaultStartingCash),
			SignalTime: fixtures.ScenarioStart,
		},
	}

	md := RenderSnapshotMarkdown("SMA_CROSS_5_20", snap, nil)

	for _, want := range []string{"# SMA_CROSS_5_20", "**Signal: BUY**", "| Portfolio Value | 1000000.00 |", "Unfilled Order", "No closed trades."} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestSweepRows(t *testing.T) {
	bars := fixtures.Bars("TEST", fixtures.ScenarioStart, fixtures.CrossoverScenario())
	configs, err := sweep.Grid{FastMin: 5, FastMax: 5, SlowMin: 10, SlowMax: 50, Step: 20}.Configs(domain.DefaultRunConfig())
	if err != nil {
		t.Fatalf("grid: %v", err)
	}

	s := sweep.New(sweep.Options{
		Metrics: observability.NewMetrics("report_sweep", prometheus.NewRegistry()),
		Logger:  zerolog.Nop(),
	})
	res, err := s.Run(context.Background(), bars, configs)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	rows := SweepRows(res)
	// slow 10 and 30 fit in 40 bars, slow 50 does not
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Rank != 1 || rows[1].Rank != 2 {
		t.Errorf("expected ranked rows first")
	}
	if rows[2].Rank != 0 || rows[2].Error == "" || rows[2].SlowWindow != 50 {
		t.Errorf("expected failed row last, got %+v", rows[2])
	}

	md := RenderSweepMarkdown(res.Instrument, res.Bars, rows)
	if !strings.Contains(md, "Configurations: 3") {
		t.Errorf("sweep markdown missing header: %s", md)
	}
}
