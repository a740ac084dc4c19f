// Package risk holds the guard rails the planners apply before sending instructions.
package risk

import "github.com/shopspring/decimal"

// Limits caps order notional and commitment size. Zero disables a limit.
type Limits struct {
	MaxOrderNotional float64
	MaxCommitment    float64
}

// Allow reports whether an order of the given notional may be sent.
func (l Limits) Allow(notional float64) bool {
	return l.MaxOrderNotional <= 0 || notional <= l.MaxOrderNotional
}

// CapCommitment clamps a commitment to [0, MaxCommitment].
func (l Limits) CapCommitment(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	if l.MaxCommitment > 0 {
		return decimal.Min(amount, decimal.NewFromFloat(l.MaxCommitment))
	}
	return amount
}
