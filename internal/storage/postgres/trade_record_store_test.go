package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

func createTestTradeRecord(runID, tradeID string, entryDay int) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:         tradeID,
		RunID:           runID,
		Instrument:      "SPY",
		EntrySignalTime: testDay.AddDate(0, 0, entryDay),
		EntryFillTime:   testDay.AddDate(0, 0, entryDay+1),
		EntryPrice:      decimal.NewFromInt(104),
		Quantity:        decimal.NewFromInt(9605),
		EntryCommission: decimal.RequireFromString("998.92"),
		ExitSignalTime:  testDay.AddDate(0, 0, entryDay+9),
		ExitFillTime:    testDay.AddDate(0, 0, entryDay+10),
		ExitPrice:       decimal.NewFromInt(92),
		ExitCommission:  decimal.RequireFromString("883.66"),
		RealizedPnL:     decimal.RequireFromString("-117142.58"),
		ReturnPct:       -11.72,
		OutcomeClass:    domain.OutcomeClassLoss,
		HoldBars:        9,
	}
}

func TestTradeRecordStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewRunStore(pool).Insert(ctx, createTestRun("run-001", testDay)))

	store := NewTradeRecordStore(pool)
	trade := createTestTradeRecord("run-001", "trade-001", 24)
	require.NoError(t, store.Insert(ctx, trade))

	got, err := store.GetByID(ctx, "trade-001")
	require.NoError(t, err)

	assert.Equal(t, trade.RunID, got.RunID)
	assert.True(t, trade.EntryFillTime.Equal(got.EntryFillTime))
	assert.True(t, trade.EntryPrice.Equal(got.EntryPrice))
	assert.True(t, trade.Quantity.Equal(got.Quantity))
	assert.True(t, trade.EntryCommission.Equal(got.EntryCommission))
	assert.True(t, trade.RealizedPnL.Equal(got.RealizedPnL))
	assert.Equal(t, trade.OutcomeClass, got.OutcomeClass)
	assert.Equal(t, trade.HoldBars, got.HoldBars)

	assert.ErrorIs(t, store.Insert(ctx, trade), storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeRecordStore_InsertBulkAndGetByRunID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewRunStore(pool).Insert(ctx, createTestRun("run-001", testDay)))

	store := NewTradeRecordStore(pool)
	trades := []*domain.TradeRecord{
		createTestTradeRecord("run-001", "trade-002", 20),
		createTestTradeRecord("run-001", "trade-001", 5),
	}
	require.NoError(t, store.InsertBulk(ctx, trades))

	got, err := store.GetByRunID(ctx, "run-001")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "trade-001", got[0].TradeID)
	assert.Equal(t, "trade-002", got[1].TradeID)
}

func TestTradeRecordStore_InsertBulkAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewRunStore(pool).Insert(ctx, createTestRun("run-001", testDay)))

	store := NewTradeRecordStore(pool)
	trades := []*domain.TradeRecord{
		createTestTradeRecord("run-001", "trade-001", 1),
		createTestTradeRecord("run-001", "trade-001", 2),
	}
	assert.ErrorIs(t, store.InsertBulk(ctx, trades), storage.ErrDuplicateKey)

	got, err := store.GetByRunID(ctx, "run-001")
	require.NoError(t, err)
	assert.Empty(t, got)
}
