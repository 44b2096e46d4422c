package strategy

import (
	"fmt"
	"strings"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/indicator"
)

// CrossoverStrategy enters on a golden cross and exits on a death cross.
//
// Rule:
//   - Flat and crossed_up: buy
//   - Long and crossed_down: sell
//   - anything else, including a pending order: nothing
type CrossoverStrategy struct {
	FastWindow int
	SlowWindow int
	Kind       domain.MAKind

	engine *indicator.Engine
}

// NewCrossoverStrategy creates a crossover strategy. Returns indicator.ErrInvalidWindow
// or indicator.ErrUnknownMAKind for bad parameters.
func NewCrossoverStrategy(fast, slow int, kind domain.MAKind) (*CrossoverStrategy, error) {
	engine, err := indicator.NewEngine(fast, slow, kind)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = domain.MAKindSMA
	}
	return &CrossoverStrategy{
		FastWindow: fast,
		SlowWindow: slow,
		Kind:       kind,
		engine:     engine,
	}, nil
}

// Indicators implements Strategy.
func (s *CrossoverStrategy) Indicators(bars []*domain.Bar) ([]domain.IndicatorRow, error) {
	return s.engine.Compute(bars)
}

// Decide implements Strategy.
func (s *CrossoverStrategy) Decide(state domain.PositionState, row domain.IndicatorRow) Intent {
	switch {
	case state == domain.StateFlat && row.Transition == domain.TransitionCrossedUp:
		return domain.SideBuy
	case state == domain.StateLong && row.Transition == domain.TransitionCrossedDown:
		return domain.SideSell
	default:
		return IntentNone
	}
}

// ID returns e.g. "SMA_CROSS_10_30".
func (s *CrossoverStrategy) ID() string {
	return fmt.Sprintf("%s_CROSS_%d_%d", strings.ToUpper(string(s.Kind)), s.FastWindow, s.SlowWindow)
}

// Ensure CrossoverStrategy implements Strategy
var _ Strategy = (*CrossoverStrategy)(nil)
