// Package decimals converts between the exchange's scaled integer amounts and decimal values.
package decimals

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var half = decimal.NewFromFloat(0.5)

// ToDecimal scales an integer amount down by 10^places, rounding half-down to places fractional digits.
func ToDecimal(places int32, amount *big.Int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return RoundHalfDown(decimal.NewFromBigInt(amount, -places), places)
}

// ToFloat is ToDecimal for callers working in the floating domain.
func ToFloat(places int32, amount *big.Int) float64 {
	return ToDecimal(places, amount).InexactFloat64()
}

// FromDecimal scales a decimal value up by 10^places and rounds half-down to an integer.
func FromDecimal(places int32, value decimal.Decimal) *big.Int {
	return RoundHalfDown(value.Shift(places), 0).BigInt()
}

// FromFloat is FromDecimal for a float64 input, using its shortest exact representation.
func FromFloat(places int32, value float64) *big.Int {
	return FromDecimal(places, decimal.NewFromFloat(value))
}

// RoundHalfDown rounds to places fractional digits, resolving ties toward zero.
func RoundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	shifted := d.Shift(places)
	whole := shifted.Truncate(0)
	if shifted.Sub(whole).Abs().GreaterThan(half) {
		whole = whole.Add(decimal.NewFromInt(int64(shifted.Sign())))
	}
	return whole.Shift(-places)
}
