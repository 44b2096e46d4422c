package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(instrument string, day int, close float64) *domain.Bar {
	return &domain.Bar{
		Instrument: instrument,
		Timestamp:  day0.AddDate(0, 0, day),
		Open:       close,
		High:       close,
		Low:        close,
		Close:      close,
		Volume:     10,
	}
}

func TestBarStore_InsertBulkAndGet(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	// Out of order on purpose: reads are sorted by timestamp.
	bars := []*domain.Bar{bar("AAPL", 2, 102), bar("AAPL", 0, 100), bar("AAPL", 1, 101)}
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByInstrument(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetByInstrument failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 bars, got %d", len(result))
	}
	for i, b := range result {
		if want := 100 + float64(i); b.Close != want {
			t.Errorf("bar %d: close %f, want %f", i, b.Close, want)
		}
	}
}

func TestBarStore_DuplicateKey(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.Bar{bar("AAPL", 0, 100)}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.Bar{bar("AAPL", 1, 101), bar("AAPL", 0, 99)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Whole batch rejected
	result, _ := store.GetByInstrument(ctx, "AAPL")
	if len(result) != 1 {
		t.Errorf("Expected 1 bar after rejected batch, got %d", len(result))
	}
}

func TestBarStore_IntraBatchDuplicate(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.Bar{bar("AAPL", 0, 100), bar("AAPL", 0, 101)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	result, _ := store.GetByInstrument(ctx, "AAPL")
	if len(result) != 0 {
		t.Errorf("Expected 0 bars (rollback), got %d", len(result))
	}
}

func TestBarStore_InvalidInput(t *testing.T) {
	store := NewBarStore()

	err := store.InsertBulk(context.Background(), []*domain.Bar{{Instrument: "AAPL", Close: 1}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for zero timestamp, got %v", err)
	}
}

func TestBarStore_GetByTimeRange(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	var bars []*domain.Bar
	for i := 0; i < 10; i++ {
		bars = append(bars, bar("AAPL", i, 100+float64(i)))
	}
	bars = append(bars, bar("MSFT", 3, 300))
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, "AAPL", day0.AddDate(0, 0, 3), day0.AddDate(0, 0, 6))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	// Inclusive on both ends
	if len(result) != 4 {
		t.Fatalf("Expected 4 bars, got %d", len(result))
	}
	if result[0].Close != 103 || result[3].Close != 106 {
		t.Errorf("Unexpected range bounds: %f..%f", result[0].Close, result[3].Close)
	}
}

func TestBarStore_ListInstruments(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, []*domain.Bar{bar("MSFT", 0, 1), bar("AAPL", 0, 1), bar("AAPL", 1, 1)})

	got, err := store.ListInstruments(ctx)
	if err != nil {
		t.Fatalf("ListInstruments failed: %v", err)
	}
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("Unexpected instruments: %v", got)
	}
}

func TestBarStore_CopyOnRead(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	b := bar("AAPL", 0, 100)
	_ = store.InsertBulk(ctx, []*domain.Bar{b})
	b.Close = 1 // mutate caller's copy

	result, _ := store.GetByInstrument(ctx, "AAPL")
	result[0].Close = 2 // mutate returned copy

	again, _ := store.GetByInstrument(ctx, "AAPL")
	if again[0].Close != 100 {
		t.Errorf("Store data was mutated: close %f", again[0].Close)
	}
}
