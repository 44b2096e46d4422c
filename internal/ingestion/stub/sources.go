package stub

import (
	"context"

	"crossover-lab/internal/domain"
)

// StubBarSource returns fixed in-memory bars for testing.
// Bars can be intentionally unordered to test sorting.
// Implements ingestion.BarSource interface.
type StubBarSource struct {
	bars []*domain.Bar
	err  error
}

// NewStubBarSource creates a new stub bar source with the given bars.
func NewStubBarSource(bars []*domain.Bar) *StubBarSource {
	return &StubBarSource{bars: bars}
}

// NewFailingBarSource creates a stub source whose Fetch always fails with err.
func NewFailingBarSource(err error) *StubBarSource {
	return &StubBarSource{err: err}
}

// Fetch returns copies of the bars, tagged with the instrument.
func (s *StubBarSource) Fetch(_ context.Context, instrument string) ([]*domain.Bar, error) {
	if s.err != nil {
		return nil, s.err
	}
	result := make([]*domain.Bar, 0, len(s.bars))
	for _, b := range s.bars {
		copy := *b
		copy.Instrument = instrument
		result = append(result, &copy)
	}
	return result, nil
}
