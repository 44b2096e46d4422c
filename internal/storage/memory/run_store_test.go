package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

func TestRunStore_InsertAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.RunSummary{
		RunID:          "run1",
		Instrument:     "AAPL",
		FastWindow:     10,
		SlowWindow:     30,
		PortfolioValue: decimal.RequireFromString("1000123.45"),
		CreatedAt:      day0,
	}

	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.PortfolioValue.Equal(run.PortfolioValue) {
		t.Errorf("PortfolioValue mismatch: got %s, want %s", got.PortfolioValue, run.PortfolioValue)
	}

	if err := store.Insert(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunStore_NotFoundAndInvalid(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.Insert(ctx, &domain.RunSummary{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestRunStore_GetByInstrumentOrdered(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	_ = store.Insert(ctx, &domain.RunSummary{RunID: "b", Instrument: "AAPL", CreatedAt: day0.Add(time.Hour)})
	_ = store.Insert(ctx, &domain.RunSummary{RunID: "a", Instrument: "AAPL", CreatedAt: day0})
	_ = store.Insert(ctx, &domain.RunSummary{RunID: "c", Instrument: "MSFT", CreatedAt: day0})

	runs, err := store.GetByInstrument(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetByInstrument failed: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "a" || runs[1].RunID != "b" {
		t.Errorf("Unexpected runs order: %+v", runs)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 3 {
		t.Errorf("Expected 3 runs, got %d", len(all))
	}
}
