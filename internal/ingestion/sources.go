package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"crossover-lab/internal/domain"
)

// ErrMalformedCSV is returned when a CSV file cannot be mapped to bars.
var ErrMalformedCSV = errors.New("malformed bar csv")

// BarSource fetches daily bars for an instrument.
type BarSource interface {
	Fetch(ctx context.Context, instrument string) ([]*domain.Bar, error)
}

// CSVSource reads bars from a daily OHLCV CSV file.
// The header must name Date, Open, High, Low, Close and Volume columns (any order,
// case-insensitive); extra columns such as "Adj Close" are ignored.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source for the file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Fetch reads the whole file.
func (s *CSVSource) Fetch(_ context.Context, instrument string) ([]*domain.Bar, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	return ReadCSV(f, instrument)
}

var csvColumns = [...]string{"date", "open", "high", "low", "close", "volume"}

// ReadCSV parses bars from r. Dates may be YYYY-MM-DD, RFC3339 or unix seconds;
// all are normalized to UTC. Rows are returned in file order.
func ReadCSV(r io.Reader, instrument string) ([]*domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrMalformedCSV)
		}
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	cols := make([]int, len(csvColumns))
	for i, name := range csvColumns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedCSV, name)
		}
		cols[i] = pos
	}

	var bars []*domain.Bar
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		ts, err := parseDate(row[cols[0]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}

		var values [5]float64
		for i := range values {
			raw := strings.TrimSpace(row[cols[i+1]])
			values[i], err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", ErrMalformedCSV, line, csvColumns[i+1], err)
			}
		}

		bars = append(bars, &domain.Bar{
			Instrument: instrument,
			Timestamp:  ts,
			Open:       values[0],
			High:       values[1],
			Low:        values[2],
			Close:      values[3],
			Volume:     values[4],
		})
	}

	return bars, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
