package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const insertTradeQuery = `
	INSERT INTO trade_records (
		trade_id, run_id, instrument,
		entry_signal_time, entry_fill_time, entry_price, quantity, entry_commission,
		exit_signal_time, exit_fill_time, exit_price, exit_commission,
		realized_pnl, return_pct, outcome_class, hold_bars
	) VALUES (
		$1, $2, $3,
		$4, $5, $6::text::numeric, $7::text::numeric, $8::text::numeric,
		$9, $10, $11::text::numeric, $12::text::numeric,
		$13::text::numeric, $14, $15, $16
	)
`

const tradeColumns = `
	trade_id, run_id, instrument,
	entry_signal_time, entry_fill_time, entry_price::text, quantity::text, entry_commission::text,
	exit_signal_time, exit_fill_time, exit_price::text, exit_commission::text,
	realized_pnl::text, return_pct, outcome_class, hold_bars
`

func tradeArgs(t *domain.TradeRecord) []any {
	return []any{
		t.TradeID, t.RunID, t.Instrument,
		t.EntrySignalTime.UTC(), t.EntryFillTime.UTC(), t.EntryPrice.String(), t.Quantity.String(), t.EntryCommission.String(),
		t.ExitSignalTime.UTC(), t.ExitFillTime.UTC(), t.ExitPrice.String(), t.ExitCommission.String(),
		t.RealizedPnL.String(), t.ReturnPct, t.OutcomeClass, t.HoldBars,
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	if _, err := s.pool.Exec(ctx, insertTradeQuery, tradeArgs(t)...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertTradeQuery, tradeArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_records WHERE trade_id = $1`

	t, err := scanTradeRecord(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByRunID retrieves all trades of a run, ordered by entry_fill_time ASC.
func (s *TradeRecordStore) GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_records WHERE run_id = $1 ORDER BY entry_fill_time ASC, trade_id ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trade records by run id: %w", err)
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var (
		t       domain.TradeRecord
		numeric decimalFields
	)

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.Instrument,
		&t.EntrySignalTime, &t.EntryFillTime, numeric.add(&t.EntryPrice), numeric.add(&t.Quantity), numeric.add(&t.EntryCommission),
		&t.ExitSignalTime, &t.ExitFillTime, numeric.add(&t.ExitPrice), numeric.add(&t.ExitCommission),
		numeric.add(&t.RealizedPnL), &t.ReturnPct, &t.OutcomeClass, &t.HoldBars,
	)
	if err != nil {
		return nil, err
	}
	if err := numeric.parse(); err != nil {
		return nil, err
	}

	t.EntrySignalTime = t.EntrySignalTime.UTC()
	t.EntryFillTime = t.EntryFillTime.UTC()
	t.ExitSignalTime = t.ExitSignalTime.UTC()
	t.ExitFillTime = t.ExitFillTime.UTC()
	return &t, nil
}
