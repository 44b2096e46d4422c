package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const yahooCSV = `Date,Open,High,Low,Close,Adj Close,Volume
2024-01-02,100.5,101,99.5,100.75,100.1,120000
2024-01-03,100.75,102.25,100,102,101.3,98000
`

func TestReadCSV_YahooLayout(t *testing.T) {
	bars, err := ReadCSV(strings.NewReader(yahooCSV), "SPY")
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}

	b := bars[1]
	if !b.Timestamp.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %v", b.Timestamp)
	}
	if b.Open != 100.75 || b.High != 102.25 || b.Low != 100 || b.Close != 102 || b.Volume != 98000 {
		t.Errorf("unexpected OHLCV %+v", *b)
	}
	if b.Instrument != "SPY" {
		t.Errorf("expected instrument SPY, got %q", b.Instrument)
	}
}

func TestReadCSV_ReorderedColumnsAndUnixDates(t *testing.T) {
	input := "close,volume,date,low,high,open\n10,5,1704153600,9,11,9.5\n"

	bars, err := ReadCSV(strings.NewReader(input), "X")
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if bars[0].Close != 10 || bars[0].Open != 9.5 {
		t.Errorf("columns mapped wrong: %+v", *bars[0])
	}
	if !bars[0].Timestamp.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %v", bars[0].Timestamp)
	}
}

func TestReadCSV_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no header", ""},
		{"missing close", "Date,Open,High,Low,Volume\n2024-01-02,1,1,1,1\n"},
		{"bad date", "Date,Open,High,Low,Close,Volume\nyesterday,1,1,1,1,1\n"},
		{"bad number", "Date,Open,High,Low,Close,Volume\n2024-01-02,1,1,1,abc,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), "X")
			if !errors.Is(err, ErrMalformedCSV) {
				t.Errorf("expected ErrMalformedCSV, got %v", err)
			}
		})
	}
}

func TestCSVSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spy.csv")
	if err := os.WriteFile(path, []byte(yahooCSV), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	bars, err := NewCSVSource(path).Fetch(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("expected 2 bars, got %d", len(bars))
	}

	if _, err := NewCSVSource(filepath.Join(t.TempDir(), "missing.csv")).Fetch(context.Background(), "SPY"); err == nil {
		t.Error("expected error for missing file")
	}
}
