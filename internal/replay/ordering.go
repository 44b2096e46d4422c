package replay

import (
	"math"
	"sort"

	"crossover-lab/internal/domain"
)

// SortBars orders bars by timestamp ASC. Equal timestamps keep their input order
// so ValidateSeries can still report them.
func SortBars(bars []*domain.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
}

// ValidateSeries checks that bars form a usable price series: non-empty, strictly
// increasing timestamps, close > 0 and no negative or non-finite OHLCV values.
// Returns a *SeriesError for the first violation found.
func ValidateSeries(bars []*domain.Bar) error {
	if len(bars) == 0 {
		return &SeriesError{Kind: ErrEmptySeries, Index: -1}
	}

	for i, b := range bars {
		if !finite(b.Close) || b.Close <= 0 {
			return &SeriesError{Kind: ErrNonPositivePrice, Index: i, Timestamp: b.Timestamp}
		}
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Volume} {
			if !finite(v) || v < 0 {
				return &SeriesError{Kind: ErrNegativeValue, Index: i, Timestamp: b.Timestamp}
			}
		}

		if i == 0 {
			continue
		}
		prev := bars[i-1].Timestamp
		switch {
		case b.Timestamp.Equal(prev):
			return &SeriesError{Kind: ErrDuplicateTimestamp, Index: i, Timestamp: b.Timestamp}
		case b.Timestamp.Before(prev):
			return &SeriesError{Kind: ErrInvalidOrdering, Index: i, Timestamp: b.Timestamp}
		}
	}

	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
