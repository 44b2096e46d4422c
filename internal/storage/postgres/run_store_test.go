package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

func createTestRun(runID string, createdAt time.Time) *domain.RunSummary {
	return &domain.RunSummary{
		RunID:          runID,
		Instrument:     "SPY",
		StartDate:      testDay,
		EndDate:        testDay.AddDate(0, 0, 39),
		BarCount:       40,
		FastWindow:     5,
		SlowWindow:     20,
		MAKind:         domain.MAKindSMA,
		SizingPolicy:   domain.SizingAllCash,
		StartingCash:   decimal.NewFromInt(1_000_000),
		CommissionRate: decimal.RequireFromString("0.001"),
		EndingCash:     decimal.RequireFromString("882857.42"),
		PositionValue:  decimal.Zero,
		PortfolioValue: decimal.RequireFromString("882857.42"),
		RealizedPnL:    decimal.RequireFromString("-117142.58"),
		Signal:         domain.SignalNeutral,
		TradeCount:     1,
		Losses:         1,
		TotalProfit:    decimal.RequireFromString("-117142.58"),
		ROIPct:         -11.714258,
		MaxDrawdownPct: 11.8,
		CreatedAt:      createdAt,
	}
}

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	run := createTestRun("run-001", testDay)
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "run-001")
	require.NoError(t, err)

	assert.Equal(t, run.Instrument, got.Instrument)
	assert.Equal(t, run.FastWindow, got.FastWindow)
	assert.Equal(t, run.MAKind, got.MAKind)
	assert.Equal(t, run.Signal, got.Signal)
	assert.True(t, run.CommissionRate.Equal(got.CommissionRate))
	assert.True(t, run.EndingCash.Equal(got.EndingCash), "ending cash %s", got.EndingCash)
	assert.True(t, run.RealizedPnL.Equal(got.RealizedPnL))
	assert.True(t, run.StartDate.Equal(got.StartDate))
	assert.InDelta(t, run.ROIPct, got.ROIPct, 1e-9)
}

func TestRunStore_DuplicateAndNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	run := createTestRun("run-001", testDay)
	require.NoError(t, store.Insert(ctx, run))
	assert.ErrorIs(t, store.Insert(ctx, run), storage.ErrDuplicateKey)

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_ListOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	require.NoError(t, store.Insert(ctx, createTestRun("run-b", testDay.Add(time.Hour))))
	require.NoError(t, store.Insert(ctx, createTestRun("run-a", testDay)))

	runs, err := store.GetByInstrument(ctx, "SPY")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].RunID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
