package indicator

import (
	"fmt"
	"math"

	"github.com/thrasher-corp/gct-ta/indicators"

	"crossover-lab/internal/domain"
)

// movingAverage returns one value per close; nil until window closes have elapsed.
func movingAverage(closes []float64, window int, kind domain.MAKind) ([]*float64, error) {
	switch kind {
	case domain.MAKindSMA:
		return sma(closes, window), nil
	case domain.MAKindEMA:
		return ema(closes, window), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMAKind, kind)
	}
}

// sma is the arithmetic mean of the trailing window. Each window is summed from
// scratch, so equal closes always produce exactly equal averages.
func sma(closes []float64, window int) []*float64 {
	out := make([]*float64, len(closes))
	for i := window - 1; i < len(closes); i++ {
		sum := 0.0
		for _, c := range closes[i-window+1 : i+1] {
			sum += c
		}
		v := sum / float64(window)
		out[i] = &v
	}
	return out
}

// ema delegates to gct-ta and masks the warm-up bars.
// gct-ta may return a full-length slice or only the settled tail; both are
// aligned to the end of the series.
func ema(closes []float64, window int) []*float64 {
	out := make([]*float64, len(closes))
	vals := indicators.EMA(closes, window)
	offset := len(closes) - len(vals)
	for i := window - 1; i < len(closes); i++ {
		j := i - offset
		if j < 0 || j >= len(vals) {
			continue
		}
		v := vals[j]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = &v
	}
	return out
}
