package domain

import "time"

// Bar represents one daily OHLCV observation for an instrument.
// Corresponds to bars table in PostgreSQL and ClickHouse.
type Bar struct {
	Instrument string    // instrument identifier (ticker)
	Timestamp  time.Time // trading day (UTC), unique per instrument
	Open       float64   // opening price
	High       float64   // session high
	Low        float64   // session low
	Close      float64   // closing price, must be > 0
	Volume     float64   // traded volume
}

// Closes extracts closing prices in series order.
func Closes(bars []*Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
