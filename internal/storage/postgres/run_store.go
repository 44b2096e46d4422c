package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, instrument, start_date, end_date, bar_count,
	fast_window, slow_window, ma_kind, sizing_policy, sizing_units,
	starting_cash::text, commission_rate::text,
	ending_cash::text, position_value::text, portfolio_value::text, realized_pnl::text, signal,
	trade_count, wins, losses, win_rate, total_profit::text, roi_pct, max_drawdown_pct,
	created_at
`

// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO backtest_runs (
			run_id, instrument, start_date, end_date, bar_count,
			fast_window, slow_window, ma_kind, sizing_policy, sizing_units,
			starting_cash, commission_rate,
			ending_cash, position_value, portfolio_value, realized_pnl, signal,
			trade_count, wins, losses, win_rate, total_profit, roi_pct, max_drawdown_pct,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11::text::numeric, $12::text::numeric,
			$13::text::numeric, $14::text::numeric, $15::text::numeric, $16::text::numeric, $17,
			$18, $19, $20, $21, $22::text::numeric, $23, $24,
			$25
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.Instrument, r.StartDate.UTC(), r.EndDate.UTC(), r.BarCount,
		r.FastWindow, r.SlowWindow, string(r.MAKind), r.SizingPolicy, r.SizingUnits,
		r.StartingCash.String(), r.CommissionRate.String(),
		r.EndingCash.String(), r.PositionValue.String(), r.PortfolioValue.String(), r.RealizedPnL.String(), string(r.Signal),
		r.TradeCount, r.Wins, r.Losses, r.WinRate, r.TotalProfit.String(), r.ROIPct, r.MaxDrawdownPct,
		r.CreatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return r, nil
}

// GetByInstrument retrieves all runs for an instrument, ordered by created_at ASC.
func (s *RunStore) GetByInstrument(ctx context.Context, instrument string) ([]*domain.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE instrument = $1 ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, instrument)
	if err != nil {
		return nil, fmt.Errorf("get runs by instrument: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetAll retrieves all runs, ordered by created_at ASC.
func (s *RunStore) GetAll(ctx context.Context) ([]*domain.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// scanRun scans a single row into a RunSummary.
func scanRun(row pgx.Row) (*domain.RunSummary, error) {
	var (
		r       domain.RunSummary
		maKind  string
		signal  string
		numeric decimalFields
	)

	err := row.Scan(
		&r.RunID, &r.Instrument, &r.StartDate, &r.EndDate, &r.BarCount,
		&r.FastWindow, &r.SlowWindow, &maKind, &r.SizingPolicy, &r.SizingUnits,
		numeric.add(&r.StartingCash), numeric.add(&r.CommissionRate),
		numeric.add(&r.EndingCash), numeric.add(&r.PositionValue), numeric.add(&r.PortfolioValue),
		numeric.add(&r.RealizedPnL), &signal,
		&r.TradeCount, &r.Wins, &r.Losses, &r.WinRate, numeric.add(&r.TotalProfit), &r.ROIPct, &r.MaxDrawdownPct,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := numeric.parse(); err != nil {
		return nil, err
	}

	r.MAKind = domain.MAKind(maKind)
	r.Signal = domain.SignalClass(signal)
	r.StartDate = r.StartDate.UTC()
	r.EndDate = r.EndDate.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

// scanRuns scans multiple rows into run summaries.
func scanRuns(rows pgx.Rows) ([]*domain.RunSummary, error) {
	var runs []*domain.RunSummary

	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}
