package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossover-lab/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMaxAffordable(t *testing.T) {
	tests := []struct {
		name  string
		cash  string
		price string
		rate  string
		want  string
	}{
		{"scenario entry", "1000000", "104", "0.001", "9605"},
		{"exact fit", "1001", "100", "0.001", "10"},
		{"one cent short", "1000.99", "100", "0.001", "9"},
		{"no commission", "1000", "100", "0", "10"},
		{"too poor", "50", "100", "0.001", "0"},
		{"zero cash", "0", "100", "0.001", "0"},
		{"negative cash", "-10", "100", "0.001", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxAffordable(d(tt.cash), d(tt.price), d(tt.rate))
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
			assert.False(t, Cost(got, d(tt.price), d(tt.rate)).GreaterThan(d(tt.cash).Abs()))
		})
	}
}

func TestAllCash(t *testing.T) {
	s := AllCash{}
	assert.Equal(t, domain.SizingAllCash, s.Name())
	assert.True(t, s.Quantity(d("1000000"), d("104"), d("0.001")).Equal(d("9605")))
}

func TestFixedUnits(t *testing.T) {
	s := FixedUnits{Units: 3}
	assert.Equal(t, domain.SizingFixedUnits, s.Name())
	assert.True(t, s.Quantity(d("1"), d("1000"), d("0.001")).Equal(d("3")))
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig(domain.SizingConfig{})
	require.NoError(t, err)
	assert.IsType(t, AllCash{}, s)

	s, err = FromConfig(domain.SizingConfig{Policy: domain.SizingFixedUnits, Units: 1})
	require.NoError(t, err)
	assert.Equal(t, FixedUnits{Units: 1}, s)

	_, err = FromConfig(domain.SizingConfig{Policy: domain.SizingFixedUnits})
	assert.ErrorIs(t, err, ErrInvalidUnits)

	_, err = FromConfig(domain.SizingConfig{Policy: "kelly"})
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}
