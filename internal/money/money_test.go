package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDecimalString(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"12.34", 1234},
		{"0", 0},
		{"0.5", 50},
		{"1999.99", 199999},
		{"-3.25", -325},
	}

	for _, tt := range tests {
		got, err := FromDecimalString(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFromDecimalString_Invalid(t *testing.T) {
	_, err := FromDecimalString("not-a-number")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12.34", Format(1234))
	assert.Equal(t, "0.00", Format(0))
	assert.Equal(t, "0.05", Format(5))
	assert.Equal(t, "-1.50", Format(-150))
}

func TestRound_HalfUp(t *testing.T) {
	assert.Equal(t, int64(2), Round(decimal.NewFromFloat(1.5)))
	assert.Equal(t, int64(1), Round(decimal.NewFromFloat(1.4)))
	assert.Equal(t, int64(2), Round(decimal.NewFromFloat(2.4)))
}
