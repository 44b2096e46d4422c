// Package sizing decides how many whole units an entry order buys.
package sizing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"crossover-lab/internal/domain"
)

// Sizing errors
var (
	ErrUnknownPolicy = errors.New("unknown sizing policy")
	ErrInvalidUnits  = errors.New("fixed_units requires Units > 0")
)

// Sizer picks the quantity of an entry order signaled at price.
type Sizer interface {
	// Quantity returns whole units to buy given available cash. Zero means no order.
	Quantity(cash, price, commissionRate decimal.Decimal) decimal.Decimal

	// Name returns the policy identifier.
	Name() string
}

// AllCash buys as many whole units as cash allows, commission included.
type AllCash struct{}

// Quantity implements Sizer.
func (AllCash) Quantity(cash, price, commissionRate decimal.Decimal) decimal.Decimal {
	return MaxAffordable(cash, price, commissionRate)
}

// Name implements Sizer.
func (AllCash) Name() string { return domain.SizingAllCash }

// FixedUnits always buys the same number of units.
type FixedUnits struct {
	Units int64
}

// Quantity implements Sizer. Affordability is enforced at settlement.
func (f FixedUnits) Quantity(_, _, _ decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(f.Units)
}

// Name implements Sizer.
func (f FixedUnits) Name() string { return domain.SizingFixedUnits }

// FromConfig creates a Sizer from domain.SizingConfig. An empty policy means all_cash.
func FromConfig(cfg domain.SizingConfig) (Sizer, error) {
	switch cfg.Policy {
	case "", domain.SizingAllCash:
		return AllCash{}, nil
	case domain.SizingFixedUnits:
		if cfg.Units <= 0 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidUnits, cfg.Units)
		}
		return FixedUnits{Units: cfg.Units}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, cfg.Policy)
	}
}

// MaxAffordable returns the largest whole quantity q with q*price*(1+rate) <= cash.
func MaxAffordable(cash, price, commissionRate decimal.Decimal) decimal.Decimal {
	if !cash.IsPositive() || !price.IsPositive() {
		return decimal.Zero
	}

	unitCost := price.Mul(decimal.NewFromInt(1).Add(commissionRate))
	q := cash.Div(unitCost).Floor()
	// Div rounds to DivisionPrecision; step back if that rounded across an integer.
	for q.IsPositive() && Cost(q, price, commissionRate).GreaterThan(cash) {
		q = q.Sub(decimal.NewFromInt(1))
	}
	if q.IsNegative() {
		return decimal.Zero
	}
	return q
}

// Cost is the cash needed to buy q units at price, commission included.
func Cost(q, price, commissionRate decimal.Decimal) decimal.Decimal {
	notional := q.Mul(price)
	return notional.Add(notional.Mul(commissionRate))
}
