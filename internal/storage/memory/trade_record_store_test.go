package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

func TestTradeRecordStore_InsertAndGet(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{
		TradeID:       "trade1",
		RunID:         "run1",
		Instrument:    "AAPL",
		EntryFillTime: day0,
		RealizedPnL:   decimal.RequireFromString("-117142.58"),
		OutcomeClass:  domain.OutcomeClassLoss,
	}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "trade1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.RealizedPnL.Equal(trade.RealizedPnL) {
		t.Errorf("RealizedPnL mismatch: got %s, want %s", got.RealizedPnL, trade.RealizedPnL)
	}
}

func TestTradeRecordStore_DuplicateKey(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{TradeID: "trade1", RunID: "run1"}
	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	if err := store.Insert(ctx, trade); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeRecordStore_InsertBulkAtomic(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		{TradeID: "t1", RunID: "run1"},
		{TradeID: "t1", RunID: "run1"},
	}
	if err := store.InsertBulk(ctx, trades); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByRunID(ctx, "run1")
	if len(got) != 0 {
		t.Errorf("Expected 0 trades (rollback), got %d", len(got))
	}
}

func TestTradeRecordStore_GetByRunIDOrdered(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		{TradeID: "t2", RunID: "run1", EntryFillTime: day0.AddDate(0, 0, 5)},
		{TradeID: "t1", RunID: "run1", EntryFillTime: day0},
		{TradeID: "t3", RunID: "run2", EntryFillTime: day0},
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 2 || got[0].TradeID != "t1" || got[1].TradeID != "t2" {
		t.Errorf("Unexpected trades: %+v", got)
	}
}
