package api

import (
	"time"

	"github.com/shopspring/decimal"

	"crossover-lab/internal/domain"
	"crossover-lab/internal/metrics"
)

// backtestRequest is the body of POST /api/backtest (or the query of GET).
// Zero fields take the server's configured defaults.
type backtestRequest struct {
	Instrument     string `json:"instrument"`
	Start          string `json:"start,omitempty"` // YYYY-MM-DD
	End            string `json:"end,omitempty"`
	FastWindow     int    `json:"fast_window,omitempty"`
	SlowWindow     int    `json:"slow_window,omitempty"`
	MAKind         string `json:"ma_kind,omitempty"`
	StartingCash   string `json:"starting_cash,omitempty"`
	CommissionRate string `json:"commission_rate,omitempty"`
	SizingPolicy   string `json:"sizing_policy,omitempty"`
	Units          int64  `json:"units,omitempty"`
	LogTrace       bool   `json:"log_trace,omitempty"`
}

type runJSON struct {
	RunID          string          `json:"run_id"`
	StrategyID     string          `json:"strategy_id"`
	Instrument     string          `json:"instrument"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	BarCount       int             `json:"bar_count"`
	FastWindow     int             `json:"fast_window"`
	SlowWindow     int             `json:"slow_window"`
	MAKind         string          `json:"ma_kind"`
	SizingPolicy   string          `json:"sizing_policy"`
	SizingUnits    int64           `json:"sizing_units,omitempty"`
	StartingCash   decimal.Decimal `json:"starting_cash"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	EndingCash     decimal.Decimal `json:"ending_cash"`
	PositionValue  decimal.Decimal `json:"position_value"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	TotalProfit    decimal.Decimal `json:"total_profit"`
	ROIPct         float64         `json:"roi_pct"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	TradeCount     int             `json:"trade_count"`
	WinRate        float64         `json:"win_rate"`
	Signal         string          `json:"signal"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toRunJSON(r *domain.RunSummary, strategyID string) runJSON {
	return runJSON{
		RunID:          r.RunID,
		StrategyID:     strategyID,
		Instrument:     r.Instrument,
		StartDate:      r.StartDate.Format(time.DateOnly),
		EndDate:        r.EndDate.Format(time.DateOnly),
		BarCount:       r.BarCount,
		FastWindow:     r.FastWindow,
		SlowWindow:     r.SlowWindow,
		MAKind:         string(r.MAKind),
		SizingPolicy:   r.SizingPolicy,
		SizingUnits:    r.SizingUnits,
		StartingCash:   r.StartingCash,
		CommissionRate: r.CommissionRate,
		EndingCash:     r.EndingCash,
		PositionValue:  r.PositionValue,
		PortfolioValue: r.PortfolioValue,
		RealizedPnL:    r.RealizedPnL,
		TotalProfit:    r.TotalProfit,
		ROIPct:         r.ROIPct,
		MaxDrawdownPct: r.MaxDrawdownPct,
		TradeCount:     r.TradeCount,
		WinRate:        r.WinRate,
		Signal:         string(r.Signal),
		CreatedAt:      r.CreatedAt,
	}
}

type tradeJSON struct {
	TradeID       string          `json:"trade_id"`
	EntryFillTime string          `json:"entry_fill_time"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	ExitFillTime  string          `json:"exit_fill_time"`
	ExitPrice     decimal.Decimal `json:"exit_price"`
	Quantity      decimal.Decimal `json:"quantity"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	ReturnPct     float64         `json:"return_pct"`
	Outcome       string          `json:"outcome"`
	HoldBars      int             `json:"hold_bars"`
}

func toTradeJSON(t *domain.TradeRecord) tradeJSON {
	return tradeJSON{
		TradeID:       t.TradeID,
		EntryFillTime: t.EntryFillTime.Format(time.DateOnly),
		EntryPrice:    t.EntryPrice,
		ExitFillTime:  t.ExitFillTime.Format(time.DateOnly),
		ExitPrice:     t.ExitPrice,
		Quantity:      t.Quantity,
		RealizedPnL:   t.RealizedPnL,
		ReturnPct:     t.ReturnPct,
		Outcome:       t.OutcomeClass,
		HoldBars:      t.HoldBars,
	}
}

type orderJSON struct {
	Side       string          `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	SignalDate string          `json:"signal_date"`
}

type backtestResponse struct {
	Run          runJSON             `json:"run"`
	Existing     bool                `json:"existing"`
	Performance  metrics.Performance `json:"performance"`
	PendingOrder *orderJSON          `json:"pending_order,omitempty"`
	Trades       []tradeJSON         `json:"trades"`
}

// traceRowJSON is one websocket message of a trace stream.
type traceRowJSON struct {
	Event      string   `json:"event"` // "row"
	Index      int      `json:"index"`
	Date       string   `json:"date"`
	Open       float64  `json:"open"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	Close      float64  `json:"close"`
	Volume     float64  `json:"volume"`
	FastMA     *float64 `json:"fast_ma"`
	SlowMA     *float64 `json:"slow_ma"`
	Transition string   `json:"transition"`
	Action     string   `json:"action,omitempty"`
	FillSide   string   `json:"fill_side,omitempty"`
	Rejected   bool     `json:"rejected,omitempty"`
	Position   string   `json:"position"`
	Equity     string   `json:"equity"`
}

func toTraceRowJSON(i int, r domain.AnnotatedRow) traceRowJSON {
	return traceRowJSON{
		Event:      "row",
		Index:      i,
		Date:       r.Timestamp.Format(time.DateOnly),
		Open:       r.Open,
		High:       r.High,
		Low:        r.Low,
		Close:      r.Close,
		Volume:     r.Volume,
		FastMA:     r.FastMA,
		SlowMA:     r.SlowMA,
		Transition: string(r.Transition),
		Action:     string(r.Action),
		FillSide:   string(r.FillSide),
		Rejected:   r.Rejected,
		Position:   string(r.Position),
		Equity:     r.Equity.String(),
	}
}

// traceDoneJSON closes a trace stream.
type traceDoneJSON struct {
	Event string `json:"event"` // "done"
	RunID string `json:"run_id"`
	Rows  int    `json:"rows"`
}

type errorJSON struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
