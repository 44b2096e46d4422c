package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossover-lab/internal/domain"
)

func TestGrid_Configs(t *testing.T) {
	base := domain.DefaultRunConfig()
	base.LogTrace = true

	configs, err := Grid{FastMin: 2, FastMax: 6, SlowMin: 4, SlowMax: 8, Step: 2}.Configs(base)
	require.NoError(t, err)

	// fast 2,4,6 x slow 4,6,8 minus fast >= slow: (2,4)(2,6)(2,8)(4,6)(4,8)(6,8)
	require.Len(t, configs, 6)
	assert.Equal(t, 2, configs[0].FastWindow)
	assert.Equal(t, 4, configs[0].SlowWindow)
	assert.Equal(t, 6, configs[5].FastWindow)
	assert.Equal(t, 8, configs[5].SlowWindow)

	for _, c := range configs {
		assert.Less(t, c.FastWindow, c.SlowWindow)
		assert.False(t, c.LogTrace)
		assert.True(t, c.StartingCash.Equal(base.StartingCash))
	}
}

func TestGrid_DefaultStep(t *testing.T) {
	configs, err := Grid{FastMin: 1, FastMax: 2, SlowMin: 3, SlowMax: 4}.Configs(domain.DefaultRunConfig())
	require.NoError(t, err)
	assert.Len(t, configs, 4)
}

func TestGrid_Empty(t *testing.T) {
	tests := []struct {
		name string
		grid Grid
	}{
		{"zero windows", Grid{}},
		{"inverted range", Grid{FastMin: 5, FastMax: 3, SlowMin: 10, SlowMax: 20}},
		{"no fast below slow", Grid{FastMin: 10, FastMax: 12, SlowMin: 5, SlowMax: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.grid.Configs(domain.DefaultRunConfig())
			assert.ErrorIs(t, err, ErrEmptyGrid)
		})
	}
}
