package backtest

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/replay"
	"crossover-lab/internal/sizing"
	"crossover-lab/internal/strategy"
)

// Engine is the single-position execution state machine.
// Implements replay.ReplayEngine.
//
// Per bar, in order:
//  1. settle the pending order at this bar's open
//  2. ask the strategy for an intent given the post-settlement state
//  3. place at most one new order, to be settled on the next bar
type Engine struct {
	cfg      domain.RunConfig
	strategy strategy.Strategy
	sizer    sizing.Sizer
	logger   zerolog.Logger

	state    domain.PositionState
	cash     decimal.Decimal
	position decimal.Decimal
	realized decimal.Decimal
	pending  *domain.Order
	entry    *domain.Fill // entry fill of the open position
	last     *domain.Bar

	rows   []domain.AnnotatedRow
	fills  []domain.Fill
	trades []domain.TradeRecord
}

// NewEngine creates an engine with a fresh account funded with cfg.StartingCash.
func NewEngine(cfg domain.RunConfig, strat strategy.Strategy, sizer sizing.Sizer, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		strategy: strat,
		sizer:    sizer,
		logger:   logger,
		state:    domain.StateFlat,
		cash:     cfg.StartingCash,
		position: decimal.Zero,
		realized: decimal.Zero,
	}
}

// OnStep processes one bar.
// Implements replay.ReplayEngine.
func (e *Engine) OnStep(step replay.Step) error {
	bar := step.Bar
	row := domain.AnnotatedRow{
		Bar:        *bar,
		FastMA:     step.Row.FastMA,
		SlowMA:     step.Row.SlowMA,
		State:      step.Row.State,
		Transition: step.Row.Transition,
	}

	if e.pending != nil {
		if err := e.settle(step, &row); err != nil {
			return err
		}
	}

	closePrice := decimal.NewFromFloat(bar.Close)
	switch intent := e.strategy.Decide(e.state, step.Row); intent {
	case domain.SideBuy:
		qty := e.sizer.Quantity(e.cash, closePrice, e.cfg.CommissionRate)
		if err := e.checkOrder(step, domain.SideBuy, qty); err != nil {
			return err
		}
		if !qty.IsPositive() {
			e.logger.Warn().
				Int("bar", step.Index).
				Str("cash", e.cash.String()).
				Float64("close", bar.Close).
				Msg("entry signal skipped: cash buys zero units")
			break
		}
		if err := e.placeOrder(step, domain.SideBuy, qty); err != nil {
			return err
		}
		row.Action = domain.SideBuy
	case domain.SideSell:
		if err := e.placeOrder(step, domain.SideSell, e.position); err != nil {
			return err
		}
		row.Action = domain.SideSell
	case strategy.IntentNone:
	default:
		return fmt.Errorf("strategy %s returned unknown intent %q", e.strategy.ID(), intent)
	}

	row.Position = e.state
	row.Cash = e.cash
	row.PositionQty = e.position
	row.Equity = e.cash.Add(e.position.Mul(closePrice))

	if e.cfg.LogTrace {
		ev := e.logger.Debug().
			Int("bar", step.Index).
			Time("ts", bar.Timestamp).
			Float64("close", bar.Close).
			Str("transition", string(row.Transition)).
			Str("state", string(row.Position))
		if row.FastMA != nil {
			ev = ev.Float64("fast_ma", *row.FastMA)
		}
		if row.SlowMA != nil {
			ev = ev.Float64("slow_ma", *row.SlowMA)
		}
		ev.Msg("bar")
	}

	e.rows = append(e.rows, row)
	e.last = bar
	return nil
}

// checkOrder rejects an order that would break the single-order state machine:
// any existing pending order, or a side that does not match the position.
func (e *Engine) checkOrder(step replay.Step, side domain.Side, qty decimal.Decimal) error {
	var reason string
	switch {
	case e.pending != nil:
		reason = fmt.Sprintf("%s order while %s order pending", side, e.pending.Side)
	case side == domain.SideBuy && e.state == domain.StateFlat:
		return nil
	case side == domain.SideSell && e.state == domain.StateLong:
		return nil
	default:
		reason = fmt.Sprintf("%s order in state %s", side, e.state)
	}

	return &OrderIntegrityError{
		BarIndex:  step.Index,
		Timestamp: step.Bar.Timestamp,
		State:     e.state,
		Pending:   e.pending,
		Attempted: newOrder(step, side, qty),
		Reason:    reason,
	}
}

func newOrder(step replay.Step, side domain.Side, qty decimal.Decimal) *domain.Order {
	return &domain.Order{
		Side:        side,
		Quantity:    qty,
		SignalIndex: step.Index,
		SignalTime:  step.Bar.Timestamp,
		SignalPrice: step.Bar.Close,
	}
}

// placeOrder checks and creates the pending order.
func (e *Engine) placeOrder(step replay.Step, side domain.Side, qty decimal.Decimal) error {
	if err := e.checkOrder(step, side, qty); err != nil {
		return err
	}

	if side == domain.SideBuy {
		e.state = domain.StateOrderPendingEntry
	} else {
		e.state = domain.StateOrderPendingExit
	}

	attempted := newOrder(step, side, qty)
	e.pending = attempted

	if e.cfg.LogTrace {
		e.logger.Info().
			Int("bar", step.Index).
			Str("side", string(side)).
			Str("qty", qty.String()).
			Float64("signal_price", step.Bar.Close).
			Msg("order placed")
	}
	return nil
}

// settle fills the pending order at the current bar's open and clears it.
func (e *Engine) settle(step replay.Step, row *domain.AnnotatedRow) error {
	order := e.pending
	if !step.Bar.Timestamp.After(order.SignalTime) {
		return &OrderIntegrityError{
			BarIndex:  step.Index,
			Timestamp: step.Bar.Timestamp,
			State:     e.state,
			Pending:   order,
			Reason:    "fill bar is not after the signal bar",
		}
	}
	e.pending = nil

	price := fillPrice(step.Bar)
	rate := e.cfg.CommissionRate

	var fill domain.Fill
	switch order.Side {
	case domain.SideBuy:
		qty := order.Quantity
		if affordable := sizing.MaxAffordable(e.cash, price, rate); qty.GreaterThan(affordable) {
			qty = affordable
		}
		if !qty.IsPositive() {
			row.Rejected = true
			e.state = domain.StateFlat
			e.logger.Warn().
				Int("bar", step.Index).
				Str("cash", e.cash.String()).
				Str("open", price.String()).
				Msg("entry order rejected: gap made it unaffordable")
			return nil
		}

		fill = newFill(order, step, qty, price, rate)
		e.cash = e.cash.Sub(fill.Notional).Sub(fill.Commission)
		e.position = qty
		e.state = domain.StateLong
		e.entry = &fill

	case domain.SideSell:
		fill = newFill(order, step, e.position, price, rate)
		e.cash = e.cash.Add(fill.Notional).Sub(fill.Commission)
		e.position = decimal.Zero
		e.state = domain.StateFlat
		e.closeTrade(fill)
	}

	row.FillSide = order.Side
	e.fills = append(e.fills, fill)

	if e.cfg.LogTrace {
		e.logger.Info().
			Int("bar", step.Index).
			Str("side", string(fill.Side)).
			Str("qty", fill.Quantity.String()).
			Str("price", fill.Price.String()).
			Str("commission", fill.Commission.String()).
			Str("cash", e.cash.String()).
			Msg("order filled")
	}
	return nil
}

// closeTrade records the round-trip opened by e.entry and closed by exit.
func (e *Engine) closeTrade(exit domain.Fill) {
	entry := e.entry
	e.entry = nil
	if entry == nil {
		return
	}

	pnl := exit.Notional.Sub(entry.Notional).Sub(entry.Commission).Sub(exit.Commission)
	e.realized = e.realized.Add(pnl)

	outcome := domain.OutcomeClassLoss
	if pnl.IsPositive() {
		outcome = domain.OutcomeClassWin
	}

	basis := entry.Notional.Add(entry.Commission)
	returnPct := pnl.Div(basis).Mul(decimal.NewFromInt(100)).InexactFloat64()

	e.trades = append(e.trades, domain.TradeRecord{
		EntrySignalTime: entry.SignalTime,
		EntryFillTime:   entry.FillTime,
		EntryPrice:      entry.Price,
		Quantity:        entry.Quantity,
		EntryCommission: entry.Commission,
		ExitSignalTime:  exit.SignalTime,
		ExitFillTime:    exit.FillTime,
		ExitPrice:       exit.Price,
		ExitCommission:  exit.Commission,
		RealizedPnL:     pnl,
		ReturnPct:       returnPct,
		OutcomeClass:    outcome,
		HoldBars:        exit.BarIndex - entry.BarIndex,
	})
}

// Snapshot returns the account as of the last processed bar.
func (e *Engine) Snapshot() domain.AccountSnapshot {
	positionValue := decimal.Zero
	if e.last != nil {
		positionValue = e.position.Mul(decimal.NewFromFloat(e.last.Close))
	}

	var pending *domain.Order
	if e.pending != nil {
		o := *e.pending
		pending = &o
	}

	return domain.AccountSnapshot{
		StartingCash:   e.cfg.StartingCash,
		Cash:           e.cash,
		PositionQty:    e.position,
		PositionValue:  positionValue,
		PortfolioValue: e.cash.Add(positionValue),
		RealizedPnL:    e.realized,
		Signal:         ClassifySignal(e.rows),
		PendingOrder:   pending,
	}
}

// fillPrice is the bar's open; a zero open (missing in some data feeds) falls back to the close.
func fillPrice(b *domain.Bar) decimal.Decimal {
	if b.Open > 0 {
		return decimal.NewFromFloat(b.Open)
	}
	return decimal.NewFromFloat(b.Close)
}

func newFill(o *domain.Order, step replay.Step, qty, price, rate decimal.Decimal) domain.Fill {
	notional := price.Mul(qty)
	return domain.Fill{
		Side:       o.Side,
		Quantity:   qty,
		Price:      price,
		Notional:   notional,
		Commission: notional.Mul(rate),
		SignalTime: o.SignalTime,
		FillTime:   step.Bar.Timestamp,
		BarIndex:   step.Index,
	}
}

// Ensure Engine implements replay.ReplayEngine
var _ replay.ReplayEngine = (*Engine)(nil)
