package reporting

import (
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crossover-lab/internal/domain"
)

func parseCSV(t *testing.T, s string, err error) [][]string {
	t.Helper()
	if err != nil {
		t.Fatalf("render csv: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(s)).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	return records
}

func TestRenderRunsCSV(t *testing.T) {
	rows := []RunRow{{
		Rank:           1,
		RunID:          "abc",
		Instrument:     "SPY",
		StrategyID:     "SMA_CROSS_10_30",
		StartDate:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		PortfolioValue: decimal.RequireFromString("1000123.45"),
		ROIPct:         0.012345,
		Signal:         "NEUTRAL",
	}}

	out, err := RenderRunsCSV(rows)
	records := parseCSV(t, out, err)

	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(records))
	}
	if records[0][0] != "rank" || len(records[0]) != len(records[1]) {
		t.Errorf("header/row mismatch: %v / %v", records[0], records[1])
	}
	if records[1][6] != "2024-01-02" || records[1][7] != "" {
		t.Errorf("unexpected dates: %q %q", records[1][6], records[1][7])
	}
	if records[1][9] != "1000123.45" {
		t.Errorf("unexpected portfolio value %q", records[1][9])
	}
}

func TestRenderSweepCSV_QuotesErrors(t *testing.T) {
	rows := []SweepRow{
		{Rank: 1, FastWindow: 5, SlowWindow: 20, PortfolioValue: decimal.NewFromInt(10)},
		{FastWindow: 5, SlowWindow: 60, Error: "insufficient data: series shorter than slow window, got 40"},
	}

	out, err := RenderSweepCSV(rows)
	records := parseCSV(t, out, err)

	if records[2][0] != "" || records[2][3] != "" {
		t.Errorf("failed row should have empty rank and value: %v", records[2])
	}
	if !strings.Contains(records[2][7], ", got 40") {
		t.Errorf("error with comma not preserved: %q", records[2][7])
	}
}

func TestRenderTraceCSV(t *testing.T) {
	fast := 101.5
	rows := []domain.AnnotatedRow{
		{
			Bar:        domain.Bar{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 100, High: 102, Low: 99, Close: 101, Volume: 1000},
			FastMA:     &fast,
			State:      domain.CrossoverUndefined,
			Transition: domain.TransitionNone,
			Position:   domain.StateFlat,
			Cash:       decimal.NewFromInt(1000),
			Equity:     decimal.NewFromInt(1000),
		},
	}

	out, err := RenderTraceCSV(rows)
	records := parseCSV(t, out, err)

	row := records[1]
	if row[6] != "101.5" || row[7] != "" {
		t.Errorf("unexpected MA cells: fast %q slow %q", row[6], row[7])
	}
	if row[13] != "flat" || row[12] != "false" {
		t.Errorf("unexpected position cells: %v", row)
	}
}

func TestRenderTradesCSV_Empty(t *testing.T) {
	out, err := RenderTradesCSV(nil)
	records := parseCSV(t, out, err)
	if len(records) != 1 {
		t.Errorf("expected header only, got %d records", len(records))
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCSV_SurfacesWriterError(t *testing.T) {
	err := writeCSV(failingWriter{}, [][]string{{"a", "b"}})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected writer error, got %v", err)
	}
}
