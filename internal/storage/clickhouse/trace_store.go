package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

// TraceStore implements storage.TraceStore using ClickHouse.
// Cash, position and equity are stored as decimal strings to stay exact.
type TraceStore struct {
	conn *Conn
}

// NewTraceStore creates a new TraceStore.
func NewTraceStore(conn *Conn) *TraceStore {
	return &TraceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TraceStore = (*TraceStore)(nil)

// InsertTrace stores the full trace of a run. Returns ErrDuplicateKey if the run already has a trace.
func (s *TraceStore) InsertTrace(ctx context.Context, runID string, rows []domain.AnnotatedRow) error {
	if runID == "" || len(rows) == 0 {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO run_trace (
			run_id, bar_index, instrument, ts,
			open, high, low, close, volume,
			fast_ma, slow_ma, state, transition,
			action, fill_side, rejected, position,
			cash, position_qty, equity
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, r := range rows {
		var rejected uint8
		if r.Rejected {
			rejected = 1
		}
		err = batch.Append(
			runID, uint32(i), r.Instrument, r.Timestamp.UTC(),
			r.Open, r.High, r.Low, r.Close, r.Volume,
			r.FastMA, r.SlowMA, string(r.State), string(r.Transition),
			string(r.Action), string(r.FillSide), rejected, string(r.Position),
			r.Cash.String(), r.PositionQty.String(), r.Equity.String(),
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

// GetByRunID retrieves the trace of a run, ordered by bar index.
// Returns ErrNotFound if the run has no trace.
func (s *TraceStore) GetByRunID(ctx context.Context, runID string) ([]domain.AnnotatedRow, error) {
	query := `
		SELECT
			instrument, ts, open, high, low, close, volume,
			fast_ma, slow_ma, state, transition,
			action, fill_side, rejected, position,
			cash, position_qty, equity
		FROM run_trace
		WHERE run_id = ?
		ORDER BY bar_index ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query trace by run id: %w", err)
	}
	defer rows.Close()

	var out []domain.AnnotatedRow
	for rows.Next() {
		var (
			r                          domain.AnnotatedRow
			fast, slow                 *float64
			state, transition          string
			action, fillSide, position string
			rejected                   uint8
			cash, positionQty, equity  string
		)
		err := rows.Scan(
			&r.Instrument, &r.Timestamp, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume,
			&fast, &slow, &state, &transition,
			&action, &fillSide, &rejected, &position,
			&cash, &positionQty, &equity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trace row: %w", err)
		}

		r.Timestamp = r.Timestamp.UTC()
		r.FastMA, r.SlowMA = fast, slow
		r.State = domain.CrossoverState(state)
		r.Transition = domain.Transition(transition)
		r.Action = domain.Side(action)
		r.FillSide = domain.Side(fillSide)
		r.Rejected = rejected == 1
		r.Position = domain.PositionState(position)
		if r.Cash, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("parse cash: %w", err)
		}
		if r.PositionQty, err = decimal.NewFromString(positionQty); err != nil {
			return nil, fmt.Errorf("parse position qty: %w", err)
		}
		if r.Equity, err = decimal.NewFromString(equity); err != nil {
			return nil, fmt.Errorf("parse equity: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace rows: %w", err)
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}

	return out, nil
}

// exists checks if a trace for the run exists.
func (s *TraceStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count() FROM run_trace WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
