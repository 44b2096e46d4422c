package replay

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSeries is the family of all price-series validation errors.
var ErrInvalidSeries = errors.New("invalid price series")

// Series validation kinds. Each SeriesError matches exactly one of these and ErrInvalidSeries.
var (
	ErrEmptySeries        = errors.New("empty series")
	ErrNonPositivePrice   = errors.New("non-positive close price")
	ErrNegativeValue      = errors.New("negative or non-finite OHLCV value")
	ErrDuplicateTimestamp = errors.New("duplicate timestamp")
	ErrInvalidOrdering    = errors.New("bars are not in ascending timestamp order")
)

// SeriesError reports the first offending bar of an invalid series.
// Index is -1 for series-level problems such as an empty series.
type SeriesError struct {
	Kind      error
	Index     int
	Timestamp time.Time
}

func (e *SeriesError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %v", ErrInvalidSeries, e.Kind)
	}
	return fmt.Sprintf("%v: %v at bar %d (%s)", ErrInvalidSeries, e.Kind, e.Index, e.Timestamp.Format(time.DateOnly))
}

// Unwrap exposes both the specific kind and ErrInvalidSeries to errors.Is.
func (e *SeriesError) Unwrap() []error {
	return []error{e.Kind, ErrInvalidSeries}
}
