// Package money keeps all cart arithmetic in integer minor units (cents)
// and confines decimal math to the rounding and display boundaries.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FromDecimalString parses a display amount like "12.34" into minor units.
func FromDecimalString(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}

// ToDecimal converts minor units into a major-unit decimal.
func ToDecimal(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}

// Round rounds a minor-unit decimal half-up to an integer amount.
func Round(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// Format renders minor units as a two-decimal display string.
func Format(minor int64) string {
	return ToDecimal(minor).StringFixed(2)
}
