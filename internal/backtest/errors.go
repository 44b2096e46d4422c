package backtest

import (
	"errors"
	"fmt"
	"time"

	"crossover-lab/internal/domain"
)

// ErrOrderIntegrity matches every *OrderIntegrityError.
var ErrOrderIntegrity = errors.New("order integrity violation")

// ErrInvalidConfig is returned for starting cash or commission values no run can use.
var ErrInvalidConfig = errors.New("invalid run config")

// OrderIntegrityError reports a broken state-machine invariant. The run is aborted.
type OrderIntegrityError struct {
	BarIndex  int
	Timestamp time.Time
	State     domain.PositionState
	Pending   *domain.Order // set when an order was already in flight
	Attempted *domain.Order
	Reason    string
}

func (e *OrderIntegrityError) Error() string {
	return fmt.Sprintf("%v at bar %d (%s): %s", ErrOrderIntegrity, e.BarIndex,
		e.Timestamp.Format(time.DateOnly), e.Reason)
}

// Is reports whether target is ErrOrderIntegrity.
func (e *OrderIntegrityError) Is(target error) bool {
	return target == ErrOrderIntegrity
}
