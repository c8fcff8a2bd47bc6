package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxLot is a discrete parcel of quantity acquired at a single price on a
// single trade date, reduced piecewise by later decreases (spec.md §3).
//
// Invariants: 0 <= RemainingQty <= OriginalQty; OriginalQty > 0.
// OriginalPrice (cost basis) is immutable once the lot is created;
// CurrentRefPrice is mutable on RESET events only.
type TaxLot struct {
	LotID          int64
	TradeDate      time.Time
	SettlementDate time.Time
	OriginalQty    decimal.Decimal
	RemainingQty   decimal.Decimal
	OriginalPrice  decimal.Decimal
	CurrentRefPrice decimal.Decimal
	SettledQty     decimal.Decimal
	// insertionOrder preserves construction order for FIFO/LIFO tie-breaks
	// independent of TradeDate, matching spec.md §4.4's tie-break rules.
	insertionOrder int
}

// IsOpen reports whether the lot still has quantity remaining.
func (l *TaxLot) IsOpen() bool {
	return l.RemainingQty.GreaterThan(decimal.Zero)
}

// RemainingNotional is remaining quantity times current reference price.
func (l *TaxLot) RemainingNotional() decimal.Decimal {
	return l.RemainingQty.Mul(l.CurrentRefPrice)
}

// InsertionOrder exposes the lot's construction order for callers outside
// the package (the allocation engine's tie-break rules need it).
func (l *TaxLot) InsertionOrder() int { return l.insertionOrder }

// SetInsertionOrder is used by the lot engine when appending a new lot.
func (l *TaxLot) SetInsertionOrder(n int) { l.insertionOrder = n }
