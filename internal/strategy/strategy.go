// Package strategy turns indicator rows into order intents.
package strategy

import (
	"crossover-lab/internal/domain"
)

// Intent is the order a strategy wants placed on a bar. IntentNone places nothing.
type Intent = domain.Side

// IntentNone is the empty intent.
const IntentNone Intent = ""

// Strategy produces indicator rows for a series and decides per bar.
type Strategy interface {
	// Indicators computes one row per bar. It does not modify bars.
	Indicators(bars []*domain.Bar) ([]domain.IndicatorRow, error)

	// Decide returns the order intent for a bar given the position state after settlement.
	Decide(state domain.PositionState, row domain.IndicatorRow) Intent

	// ID returns strategy identifier (includes parameters).
	ID() string
}
