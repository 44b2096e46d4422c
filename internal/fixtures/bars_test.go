package fixtures_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/fixtures"
	"crossover-lab/internal/indicator"
)

func TestCrossoverScenario_CrossBars(t *testing.T) {
	bars := fixtures.Bars("TEST", fixtures.ScenarioStart, fixtures.CrossoverScenario())
	rows, err := indicator.Compute(bars, fixtures.ScenarioFastWindow, fixtures.ScenarioSlowWindow, domain.MAKindSMA)
	require.NoError(t, err)
	require.Len(t, rows, 40)

	assert.Nil(t, rows[fixtures.ScenarioSlowWindow-2].SlowMA)
	assert.NotNil(t, rows[fixtures.ScenarioSlowWindow-1].SlowMA)

	var crosses []int
	for i, r := range rows {
		if r.Transition != domain.TransitionNone {
			crosses = append(crosses, i)
		}
	}
	assert.Equal(t, []int{fixtures.ScenarioGoldenCrossAt, fixtures.ScenarioDeathCrossAt}, crosses)
	assert.Equal(t, domain.TransitionCrossedUp, rows[fixtures.ScenarioGoldenCrossAt].Transition)
	assert.Equal(t, domain.TransitionCrossedDown, rows[fixtures.ScenarioDeathCrossAt].Transition)
}
