// Package money holds the two-decimal currency arithmetic used by every
// amount that is compared or persisted.
package money

import "github.com/shopspring/decimal"

// Epsilon is the tolerance below which two amounts are considered equal.
const Epsilon = 0.01

// Round2 rounds an amount half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Sum adds amounts without accumulating float drift.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.Round(2).InexactFloat64()
}

// Sub returns a - b rounded to two decimals.
func Sub(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// NetPayment is the cash part of a payment: max(0, total - offset).
func NetPayment(total, offset float64) float64 {
	net := Sub(total, offset)
	if net < 0 {
		return 0
	}
	return net
}

// ClampedDecrement subtracts amount from balance without going below zero.
// It also reports whether the clamp kicked in.
func ClampedDecrement(balance, amount float64) (float64, bool) {
	next := Sub(balance, amount)
	if next < 0 {
		return 0, true
	}
	return next, false
}

// GreaterThan compares two amounts after rounding.
func GreaterThan(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).GreaterThan(decimal.NewFromFloat(b).Round(2))
}

// Cents converts an amount to integer cents.
func Cents(v float64) int64 {
	return decimal.NewFromFloat(v).Round(2).Shift(2).IntPart()
}

// FormatYuan renders an amount with two decimals.
func FormatYuan(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
