// Package indicator computes fast/slow moving averages and crossover flags over a price series.
package indicator

import (
	"errors"
	"fmt"

	"crossover-lab/internal/domain"
)

// Indicator errors
var (
	ErrInvalidWindow    = errors.New("invalid window: fast and slow must be positive and fast < slow")
	ErrInsufficientData = errors.New("insufficient data: series shorter than slow window")
	ErrUnknownMAKind    = errors.New("unknown moving-average kind")
)

// Engine computes indicator rows for a fixed pair of windows.
// It holds no per-series state and is safe for concurrent use.
type Engine struct {
	fast int
	slow int
	kind domain.MAKind
}

// NewEngine creates an Engine after validating its windows.
func NewEngine(fast, slow int, kind domain.MAKind) (*Engine, error) {
	if err := ValidateWindows(fast, slow); err != nil {
		return nil, err
	}
	if kind == "" {
		kind = domain.MAKindSMA
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMAKind, kind)
	}
	return &Engine{fast: fast, slow: slow, kind: kind}, nil
}

// ValidateWindows returns ErrInvalidWindow unless 0 < fast < slow.
func ValidateWindows(fast, slow int) error {
	if fast <= 0 || slow <= 0 {
		return fmt.Errorf("%w: fast=%d slow=%d", ErrInvalidWindow, fast, slow)
	}
	if fast >= slow {
		return fmt.Errorf("%w: fast=%d slow=%d", ErrInvalidWindow, fast, slow)
	}
	return nil
}

// Compute produces one IndicatorRow per bar. The input is not modified.
// Returns ErrInsufficientData if the series has fewer bars than the slow window.
func (e *Engine) Compute(bars []*domain.Bar) ([]domain.IndicatorRow, error) {
	if len(bars) < e.slow {
		return nil, fmt.Errorf("%w: have %d bars, slow window %d", ErrInsufficientData, len(bars), e.slow)
	}

	closes := domain.Closes(bars)
	fast, err := movingAverage(closes, e.fast, e.kind)
	if err != nil {
		return nil, err
	}
	slow, err := movingAverage(closes, e.slow, e.kind)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.IndicatorRow, len(bars))
	prev := domain.CrossoverUndefined
	for i, b := range bars {
		state := crossoverState(fast[i], slow[i])
		rows[i] = domain.IndicatorRow{
			Timestamp:  b.Timestamp,
			FastMA:     fast[i],
			SlowMA:     slow[i],
			State:      state,
			Transition: transition(prev, state),
		}
		prev = state
	}

	return rows, nil
}

// Compute is a convenience wrapper around NewEngine(...).Compute(bars).
func Compute(bars []*domain.Bar, fast, slow int, kind domain.MAKind) ([]domain.IndicatorRow, error) {
	e, err := NewEngine(fast, slow, kind)
	if err != nil {
		return nil, err
	}
	return e.Compute(bars)
}

// crossoverState compares the averages. Ties are "below" so they never trigger a buy.
func crossoverState(fast, slow *float64) domain.CrossoverState {
	if fast == nil || slow == nil {
		return domain.CrossoverUndefined
	}
	if *fast > *slow {
		return domain.CrossoverAbove
	}
	return domain.CrossoverBelow
}

// transition derives the flag from the previous and current state.
// An undefined previous state (including bar 0) never yields a transition.
func transition(prev, cur domain.CrossoverState) domain.Transition {
	switch {
	case prev == domain.CrossoverBelow && cur == domain.CrossoverAbove:
		return domain.TransitionCrossedUp
	case prev == domain.CrossoverAbove && cur == domain.CrossoverBelow:
		return domain.TransitionCrossedDown
	default:
		return domain.TransitionNone
	}
}
