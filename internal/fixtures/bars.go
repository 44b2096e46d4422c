// Package fixtures builds deterministic price series for demos and tests.
package fixtures

import (
	"context"
	"math"
	"time"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/storage"
)

// Scenario bar indices for CrossoverScenario with fast=5, slow=20.
const (
	ScenarioFastWindow    = 5
	ScenarioSlowWindow    = 20
	ScenarioGoldenCrossAt = 24
	ScenarioDeathCrossAt  = 33
)

// ScenarioStart is the first trading day used by fixture series.
var ScenarioStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Bars builds one daily bar per close starting at start.
// Open is the previous close (the first bar opens at its own close).
func Bars(instrument string, start time.Time, closes []float64) []*domain.Bar {
	bars := make([]*domain.Bar, len(closes))
	prev := 0.0
	for i, c := range closes {
		open := prev
		if i == 0 {
			open = c
		}
		bars[i] = &domain.Bar{
			Instrument: instrument,
			Timestamp:  start.AddDate(0, 0, i),
			Open:       open,
			High:       math.Max(open, c),
			Low:        math.Min(open, c),
			Close:      c,
			Volume:     1000 + float64(i),
		}
		prev = c
	}
	return bars
}

// CrossoverScenario returns 40 closes, flat at 100, that ramp up to a golden
// cross at bar 24 and fall back to a death cross at bar 33 (fast=5, slow=20).
// The crosses sit later than bars 15 and 30 because the slow MA is undefined
// before bar 19, so no crossover can be reported earlier than bar 20.
func CrossoverScenario() []float64 {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	ramp := []float64{104, 108, 112, 116, 116, 116, 104, 96, 92}
	copy(closes[24:], ramp)
	for i := 24 + len(ramp); i < len(closes); i++ {
		closes[i] = 92
	}
	return closes
}

// Wave returns n closes oscillating around base with the given amplitude and period (bars).
func Wave(n int, base, amplitude float64, period int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		angle := 2 * math.Pi * float64(i) / float64(period)
		closes[i] = math.Round((base+amplitude*math.Sin(angle))*100) / 100
	}
	return closes
}

// LoadBars inserts bars into a store.
func LoadBars(ctx context.Context, store storage.BarStore, bars []*domain.Bar) error {
	return store.InsertBulk(ctx, bars)
}
