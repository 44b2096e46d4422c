package storage

import (
	"context"
	"time"

	"crossover-lab/internal/domain"
)

// BarStore provides access to bars storage.
type BarStore interface {
	// InsertBulk adds multiple bars atomically. Fails entire batch on duplicate (instrument, timestamp).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetByInstrument retrieves all bars for an instrument, ordered by timestamp ASC.
	GetByInstrument(ctx context.Context, instrument string) ([]*domain.Bar, error)

	// GetByTimeRange retrieves bars for an instrument within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, instrument string, start, end time.Time) ([]*domain.Bar, error)

	// ListInstruments returns all instruments with at least one bar, sorted.
	ListInstruments(ctx context.Context) ([]string, error)
}

// RunStore provides access to backtest_runs storage.
type RunStore interface {
	// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunSummary) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// GetByInstrument retrieves all runs for an instrument, ordered by created_at ASC.
	GetByInstrument(ctx context.Context, instrument string) ([]*domain.RunSummary, error)

	// GetAll retrieves all runs, ordered by created_at ASC.
	GetAll(ctx context.Context) ([]*domain.RunSummary, error)
}

// TradeRecordStore provides access to trade_records storage.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByRunID retrieves all trades of a run, ordered by entry_fill_time ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error)
}

// TraceStore provides access to run_trace storage (one annotated row per bar).
type TraceStore interface {
	// InsertTrace stores the full trace of a run. Returns ErrDuplicateKey if the run already has a trace
	// and ErrInvalidInput for an empty trace.
	InsertTrace(ctx context.Context, runID string, rows []domain.AnnotatedRow) error

	// GetByRunID retrieves the trace of a run, ordered by timestamp ASC.
	// Returns ErrNotFound if the run has no trace.
	GetByRunID(ctx context.Context, runID string) ([]domain.AnnotatedRow, error)
}
