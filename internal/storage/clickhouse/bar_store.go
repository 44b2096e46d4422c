package clickhouse

import (
	"context"
	"fmt"
	"time"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (instrument, timestamp).
// MergeTree does not enforce uniqueness, so duplicates are checked before the batch is sent.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type span struct{ start, end time.Time }
	type key struct {
		instrument string
		unixMilli  int64
	}
	seen := make(map[key]struct{}, len(bars))
	spans := make(map[string]span)
	for _, b := range bars {
		if b == nil || b.Instrument == "" || b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{b.Instrument, b.Timestamp.UnixMilli()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}

		sp, ok := spans[b.Instrument]
		if !ok {
			sp = span{b.Timestamp, b.Timestamp}
		}
		if b.Timestamp.Before(sp.start) {
			sp.start = b.Timestamp
		}
		if b.Timestamp.After(sp.end) {
			sp.end = b.Timestamp
		}
		spans[b.Instrument] = sp
	}

	// One range scan per instrument instead of one lookup per bar.
	for instrument, sp := range spans {
		existing, err := s.GetByTimeRange(ctx, instrument, sp.start, sp.end)
		if err != nil {
			return fmt.Errorf("check existing bars: %w", err)
		}
		for _, b := range existing {
			if _, dup := seen[key{instrument, b.Timestamp.UnixMilli()}]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (instrument, ts, open, high, low, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Instrument, b.Timestamp.UTC(),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByInstrument retrieves all bars for an instrument, ordered by timestamp ASC.
func (s *BarStore) GetByInstrument(ctx context.Context, instrument string) ([]*domain.Bar, error) {
	query := `
		SELECT instrument, ts, open, high, low, close, volume
		FROM bars
		WHERE instrument = ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, instrument)
	if err != nil {
		return nil, fmt.Errorf("query bars by instrument: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByTimeRange retrieves bars for an instrument within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(ctx context.Context, instrument string, start, end time.Time) ([]*domain.Bar, error) {
	query := `
		SELECT instrument, ts, open, high, low, close, volume
		FROM bars
		WHERE instrument = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, instrument, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query bars by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// ListInstruments returns all instruments with at least one bar, sorted.
func (s *BarStore) ListInstruments(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT instrument FROM bars ORDER BY instrument`)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var instrument string
		if err := rows.Scan(&instrument); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, instrument)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instruments: %w", err)
	}
	return out, nil
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		err := rows.Scan(
			&b.Instrument, &b.Timestamp,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
