package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

// BarStore implements storage.BarStore using PostgreSQL.
type BarStore struct {
	pool *Pool
}

// NewBarStore creates a new BarStore.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars atomically. Fails entire batch on duplicate (instrument, timestamp).
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	for _, b := range bars {
		if b == nil || b.Instrument == "" || b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO bars (instrument, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, b := range bars {
		_, err := tx.Exec(ctx, query,
			b.Instrument, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert bar: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByInstrument retrieves all bars for an instrument, ordered by timestamp ASC.
func (s *BarStore) GetByInstrument(ctx context.Context, instrument string) ([]*domain.Bar, error) {
	query := `
		SELECT instrument, ts, open, high, low, close, volume
		FROM bars
		WHERE instrument = $1
		ORDER BY ts ASC
	`

	rows, err := s.pool.Query(ctx, query, instrument)
	if err != nil {
		return nil, fmt.Errorf("get bars by instrument: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByTimeRange retrieves bars for an instrument within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(ctx context.Context, instrument string, start, end time.Time) ([]*domain.Bar, error) {
	query := `
		SELECT instrument, ts, open, high, low, close, volume
		FROM bars
		WHERE instrument = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC
	`

	rows, err := s.pool.Query(ctx, query, instrument, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("get bars by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// ListInstruments returns all instruments with at least one bar, sorted.
func (s *BarStore) ListInstruments(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT instrument FROM bars ORDER BY instrument`)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	instruments, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect instruments: %w", err)
	}
	return instruments, nil
}

// scanBars scans multiple rows into bars.
func scanBars(rows pgx.Rows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		err := rows.Scan(&b.Instrument, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
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
