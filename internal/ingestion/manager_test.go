package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/ingestion/stub"
	"crossover-lab/internal/replay"
	"crossover-lab/internal/storage"
	"crossover-lab/internal/storage/memory"
)

// orderValidatingBarStore wraps a BarStore and rejects unordered batches in InsertBulk.
type orderValidatingBarStore struct {
	storage.BarStore
}

func (s *orderValidatingBarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i-1].Timestamp.Before(bars[i].Timestamp) {
			return replay.ErrInvalidOrdering
		}
	}
	return s.BarStore.InsertBulk(ctx, bars)
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func bar(n int, close float64) *domain.Bar {
	return &domain.Bar{Timestamp: day(n), Open: close, High: close, Low: close, Close: close, Volume: 100}
}

func newManager(source BarSource, store storage.BarStore) *Manager {
	return NewManager(ManagerOptions{Source: source, Store: store, Logger: zerolog.Nop()})
}

func TestManager_Ingest_Ordering(t *testing.T) {
	bars := []*domain.Bar{bar(2, 12), bar(0, 10), bar(1, 11)}

	store := memory.NewBarStore()
	mgr := newManager(stub.NewStubBarSource(bars), &orderValidatingBarStore{BarStore: store})

	ctx := context.Background()
	count, err := mgr.Ingest(ctx, "SPY")
	if err != nil {
		t.Fatalf("Ingest failed: %v (Manager must sort before InsertBulk)", err)
	}
	if count != 3 {
		t.Errorf("expected 3 bars, got %d", count)
	}

	stored, err := store.GetByInstrument(ctx, "SPY")
	if err != nil {
		t.Fatalf("GetByInstrument failed: %v", err)
	}
	for i, b := range stored {
		if b.Close != float64(10+i) {
			t.Errorf("bar %d: expected close %v, got %v", i, 10+i, b.Close)
		}
		if b.Instrument != "SPY" {
			t.Errorf("bar %d: expected instrument SPY, got %q", i, b.Instrument)
		}
	}
}

func TestManager_Ingest_DuplicateRejection(t *testing.T) {
	bars := []*domain.Bar{bar(0, 10), bar(1, 11)}
	store := memory.NewBarStore()
	mgr := newManager(stub.NewStubBarSource(bars), store)

	ctx := context.Background()
	if _, err := mgr.Ingest(ctx, "SPY"); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	_, err := mgr.Ingest(ctx, "SPY")
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey on second ingest, got %v", err)
	}
}

func TestManager_Ingest_RejectsInvalidSeries(t *testing.T) {
	tests := []struct {
		name string
		bars []*domain.Bar
		want error
	}{
		{"empty", nil, replay.ErrEmptySeries},
		{"duplicate day", []*domain.Bar{bar(0, 10), bar(0, 11)}, replay.ErrDuplicateTimestamp},
		{"zero close", []*domain.Bar{bar(0, 10), bar(1, 0)}, replay.ErrNonPositivePrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewBarStore()
			mgr := newManager(stub.NewStubBarSource(tt.bars), store)

			_, err := mgr.Ingest(context.Background(), "SPY")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, replay.ErrInvalidSeries) {
				t.Errorf("expected ErrInvalidSeries family, got %v", err)
			}

			instruments, _ := store.ListInstruments(context.Background())
			if len(instruments) != 0 {
				t.Errorf("nothing should be stored, got %v", instruments)
			}
		})
	}
}

func TestManager_Ingest_SourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	mgr := newManager(stub.NewFailingBarSource(boom), memory.NewBarStore())

	_, err := mgr.Ingest(context.Background(), "SPY")
	if !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}
}

func TestManager_Ingest_EmptyInstrument(t *testing.T) {
	mgr := newManager(stub.NewStubBarSource([]*domain.Bar{bar(0, 10)}), memory.NewBarStore())

	_, err := mgr.Ingest(context.Background(), "")
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
