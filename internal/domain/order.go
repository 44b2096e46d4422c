package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order is an order signaled on one bar and settled on the next.
type Order struct {
	Side        Side
	Quantity    decimal.Decimal // whole units
	SignalIndex int             // bar index the signal was generated on
	SignalTime  time.Time
	SignalPrice float64 // close of the signal bar
}

// Fill is a settled order.
type Fill struct {
	Side       Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal // open of the fill bar
	Notional   decimal.Decimal // price * quantity
	Commission decimal.Decimal // notional * commission rate
	SignalTime time.Time
	FillTime   time.Time
	BarIndex   int // bar index the fill settled on
}
