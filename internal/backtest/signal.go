package backtest

import "crossover-lab/internal/domain"

// ClassifySignal derives the current signal from the last row's transition:
// crossed_up is BUY, crossed_down is SELL, anything else (or no rows) is NEUTRAL.
func ClassifySignal(rows []domain.AnnotatedRow) domain.SignalClass {
	if len(rows) == 0 {
		return domain.SignalNeutral
	}
	switch rows[len(rows)-1].Transition {
	case domain.TransitionCrossedUp:
		return domain.SignalBuy
	case domain.TransitionCrossedDown:
		return domain.SignalSell
	default:
		return domain.SignalNeutral
	}
}
