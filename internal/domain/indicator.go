package domain

import "time"

// CrossoverState is the relative ordering of the fast and slow moving averages on a bar.
type CrossoverState string

const (
	CrossoverUndefined CrossoverState = "undefined"
	CrossoverAbove     CrossoverState = "above"
	CrossoverBelow     CrossoverState = "below"
)

// Transition is the change in crossover state between consecutive bars.
type Transition string

const (
	TransitionNone        Transition = "none"
	TransitionCrossedUp   Transition = "crossed_up"
	TransitionCrossedDown Transition = "crossed_down"
)

// MAKind selects how moving averages are computed.
type MAKind string

const (
	MAKindSMA MAKind = "sma"
	MAKindEMA MAKind = "ema"
)

// IsValid checks if the moving-average kind is supported.
func (k MAKind) IsValid() bool {
	return k == MAKindSMA || k == MAKindEMA
}

// IndicatorRow holds the derived values for one bar.
// FastMA and SlowMA are nil while their window has not filled yet.
type IndicatorRow struct {
	Timestamp  time.Time
	FastMA     *float64
	SlowMA     *float64
	State      CrossoverState
	Transition Transition
}
