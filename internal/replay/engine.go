// Package replay validates price series and walks them bar by bar in timestamp order.
package replay

import (
	"crossover-lab/internal/domain"
)

// Step is one bar of a run together with its indicator row.
type Step struct {
	Index int
	Bar   *domain.Bar
	Row   domain.IndicatorRow
}

// ReplayEngine processes steps in order.
// Steps are guaranteed to be ordered by timestamp and contiguous from index 0.
type ReplayEngine interface {
	// OnStep is called once per bar. A non-nil error aborts the replay.
	OnStep(step Step) error
}
