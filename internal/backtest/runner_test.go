package backtest

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossover-lab/internal/fixtures"
	"crossover-lab/internal/indicator"
	"crossover-lab/internal/replay"
	"crossover-lab/internal/storage/memory"
)

func TestRunner_RunFromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBarStore()
	bars := scenarioBars()
	require.NoError(t, store.InsertBulk(ctx, bars))

	runner := NewRunner(replay.NewRunner(store), zerolog.Nop())

	all, err := runner.RunAll(ctx, "TEST", scenarioConfig())
	require.NoError(t, err)

	direct, err := Run(scenarioBars(), scenarioConfig(), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, direct.RunID, all.RunID)
	assert.True(t, direct.Snapshot.Cash.Equal(all.Snapshot.Cash))

	ranged, err := runner.Run(ctx, "TEST", bars[0].Timestamp, bars[29].Timestamp, scenarioConfig())
	require.NoError(t, err)
	assert.Len(t, ranged.Rows, 30)
	assert.NotEqual(t, all.RunID, ranged.RunID)
}

func TestRunner_ValidatesConfigBeforeLoading(t *testing.T) {
	runner := NewRunner(replay.NewRunner(memory.NewBarStore()), zerolog.Nop())

	cfg := scenarioConfig()
	cfg.SlowWindow = cfg.FastWindow

	_, err := runner.RunAll(context.Background(), "MISSING", cfg)
	assert.ErrorIs(t, err, indicator.ErrInvalidWindow)

	_, err = runner.RunAll(context.Background(), "MISSING", scenarioConfig())
	assert.ErrorIs(t, err, replay.ErrEmptySeries)
}

func TestRunner_RangeShorterThanSlowWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBarStore()
	bars := fixtures.Bars("TEST", fixtures.ScenarioStart, fixtures.CrossoverScenario())
	require.NoError(t, store.InsertBulk(ctx, bars))

	runner := NewRunner(replay.NewRunner(store), zerolog.Nop())
	_, err := runner.Run(ctx, "TEST", bars[0].Timestamp, bars[5].Timestamp, scenarioConfig())
	assert.ErrorIs(t, err, indicator.ErrInsufficientData)
}
