// Package decimalx centralizes the engine's fixed-precision decimal
// conventions on top of github.com/shopspring/decimal so call sites never
// pick a rounding mode ad hoc (spec.md §4.4: "all quantities and prices are
// fixed-precision decimals ... rounding is half-even at the price's
// scale. No floating-point.").
package decimalx

import "github.com/shopspring/decimal"

// RoundHalfEven rounds d to scale decimal places using round-half-to-even
// (banker's rounding), matching spec.md §4.4's P&L rounding rule.
// shopspring/decimal's RoundBank implements exactly this.
func RoundHalfEven(d decimal.Decimal, scale int32) decimal.Decimal {
	return d.RoundBank(scale)
}

// Scale returns the number of digits after the decimal point with which d
// was constructed (its negated exponent, so trailing zeros count: 2 for
// "61.50", although d.String() is "61.5"; negative for a value such as
// "1E2"), used to pick the rounding scale for a realized
// P&L computation from the price that produced it (spec.md §4.4: "P&L
// uses the same scale as price").
func Scale(d decimal.Decimal) int32 {
	return d.Exponent() * -1
}

// RealizedPnL computes (closePrice - originalPrice) * qty, rounded
// half-even at closePrice's scale (spec.md §4.4).
func RealizedPnL(closePrice, originalPrice, qty decimal.Decimal) decimal.Decimal {
	raw := closePrice.Sub(originalPrice).Mul(qty)
	scale := Scale(closePrice)
	if scale < 0 {
		scale = 0
	}
	return RoundHalfEven(raw, scale)
}
