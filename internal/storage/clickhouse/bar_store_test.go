package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

var testDay = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func testBars(instrument string, n int) []*domain.Bar {
	bars := make([]*domain.Bar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = &domain.Bar{
			Instrument: instrument,
			Timestamp:  testDay.AddDate(0, 0, i),
			Open:       c - 0.5,
			High:       c + 1,
			Low:        c - 1,
			Close:      c,
			Volume:     1000,
		}
	}
	return bars
}

func TestBarStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn)

	bars := testBars("AAPL", 5)
	require.NoError(t, store.InsertBulk(ctx, bars))

	got, err := store.GetByInstrument(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i := range got {
		assert.True(t, bars[i].Timestamp.Equal(got[i].Timestamp))
		assert.InDelta(t, bars[i].Close, got[i].Close, 1e-9)
		assert.InDelta(t, bars[i].Open, got[i].Open, 1e-9)
	}
}

func TestBarStore_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn)

	bars := testBars("AAPL", 3)
	require.NoError(t, store.InsertBulk(ctx, bars))

	err := store.InsertBulk(ctx, bars[1:2])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []*domain.Bar{testBars("MSFT", 1)[0], testBars("MSFT", 1)[0]})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByInstrument(ctx, "MSFT")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBarStore_GetByTimeRangeAndInstruments(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBarStore(conn)

	require.NoError(t, store.InsertBulk(ctx, testBars("MSFT", 3)))
	require.NoError(t, store.InsertBulk(ctx, testBars("AAPL", 10)))

	got, err := store.GetByTimeRange(ctx, "AAPL", testDay.AddDate(0, 0, 2), testDay.AddDate(0, 0, 4))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, 102.0, got[0].Close, 1e-9)
	assert.InDelta(t, 104.0, got[2].Close, 1e-9)

	instruments, err := store.ListInstruments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, instruments)
}
