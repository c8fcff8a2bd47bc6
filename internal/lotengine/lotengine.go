// Package lotengine implements C4: FIFO/LIFO/HIFO tax-lot allocation and
// realized P&L, and the RESET (price) operation (spec.md §4.4).
package lotengine

import (
	"fmt"
	"sort"

	"github.com/chidi150c/posengine/internal/decimalx"
	"github.com/chidi150c/posengine/internal/domain"
	"github.com/shopspring/decimal"
)

// Method is the tax-lot selection method (spec.md §4.4, §6).
type Method string

const (
	MethodFIFO Method = "FIFO"
	MethodLIFO Method = "LIFO"
	MethodHIFO Method = "HIFO"
)

// AddLot implements the NEW_TRADE/INCREASE path: append a new lot with
// original=remaining=trade.Quantity, original price = current price =
// trade.Price. Returns the single-allocation result (spec.md §4.4).
func AddLot(state *domain.PositionState, trade domain.Trade) domain.AllocationResult {
	settled := trade.Quantity
	lot := &domain.TaxLot{
		LotID:           state.NextLotID(),
		TradeDate:       trade.EffectiveDate,
		SettlementDate:  trade.WithSettlementDate(),
		OriginalQty:     trade.Quantity,
		RemainingQty:    trade.Quantity,
		OriginalPrice:   trade.Price,
		CurrentRefPrice: trade.Price,
		SettledQty:      settled,
	}
	state.AppendLot(lot)
	return domain.AllocationResult{
		Allocations: []domain.Allocation{{
			LotID: lot.LotID,
			Qty:   trade.Quantity,
			Price: trade.Price,
		}},
		TotalQty:         trade.Quantity,
		TotalRealizedPnL: decimal.Zero,
	}
}

// ReduceLots implements the DECREASE path: consumes requestedQty across
// open lots ordered per method, emitting one allocation per lot touched.
// If requestedQty cannot be fully satisfied by open lots, it returns
// domain.ErrInsufficientQuantity and makes no mutation (lots are only
// decremented after the full plan is known to succeed).
func ReduceLots(state *domain.PositionState, method Method, requestedQty, closePrice decimal.Decimal, correlationID string) (domain.AllocationResult, error) {
	ordered := orderOpenLots(state.Lots, method)

	remaining := requestedQty
	type plannedCut struct {
		lot *domain.TaxLot
		qty decimal.Decimal
	}
	var plan []plannedCut
	for _, lot := range ordered {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		consumed := decimal.Min(lot.RemainingQty, remaining)
		if consumed.LessThanOrEqual(decimal.Zero) {
			continue
		}
		plan = append(plan, plannedCut{lot: lot, qty: consumed})
		remaining = remaining.Sub(consumed)
	}
	if remaining.GreaterThan(decimal.Zero) {
		return domain.AllocationResult{}, domain.NewEngineError(
			domain.ErrInsufficientQuantity, correlationID, "lotengine.reduce",
			fmt.Sprintf("requested %s exceeds open quantity (short by %s)", requestedQty.String(), remaining.String()),
			nil,
		)
	}

	result := domain.AllocationResult{TotalQty: decimal.Zero, TotalRealizedPnL: decimal.Zero}
	for _, cut := range plan {
		cut.lot.RemainingQty = cut.lot.RemainingQty.Sub(cut.qty)
		pnl := decimalx.RealizedPnL(closePrice, cut.lot.OriginalPrice, cut.qty)
		result.Allocations = append(result.Allocations, domain.Allocation{
			LotID:       cut.lot.LotID,
			Qty:         cut.qty,
			Price:       closePrice,
			RealizedPnL: &pnl,
		})
		result.TotalQty = result.TotalQty.Add(cut.qty)
		result.TotalRealizedPnL = result.TotalRealizedPnL.Add(pnl)
	}
	return result, nil
}

// ResetPrices implements the RESET (market data) operation: for each open
// lot, set CurrentRefPrice := newPrice. OriginalPrice and realized P&L are
// untouched (spec.md §4.4).
func ResetPrices(state *domain.PositionState, newPrice decimal.Decimal) {
	for _, lot := range state.Lots {
		if lot.IsOpen() {
			lot.CurrentRefPrice = newPrice
		}
	}
}

// orderOpenLots returns the open lots of lots in the order ReduceLots
// should consume them, per method (spec.md §4.4):
//   - FIFO: oldest trade date first, tie-break by insertion order.
//   - LIFO: newest trade date first, tie-break by reverse insertion order.
//   - HIFO: highest original price first, tie-break oldest trade date,
//     then insertion order.
// Closed lots (remaining == 0) never participate.
func orderOpenLots(lots []*domain.TaxLot, method Method) []*domain.TaxLot {
	var open []*domain.TaxLot
	for _, l := range lots {
		if l.IsOpen() {
			open = append(open, l)
		}
	}
	sorted := make([]*domain.TaxLot, len(open))
	copy(sorted, open)

	switch method {
	case MethodLIFO:
		sort.SliceStable(sorted, func(i, j int) bool {
			if !sorted[i].TradeDate.Equal(sorted[j].TradeDate) {
				return sorted[i].TradeDate.After(sorted[j].TradeDate)
			}
			return sorted[i].InsertionOrder() > sorted[j].InsertionOrder()
		})
	case MethodHIFO:
		sort.SliceStable(sorted, func(i, j int) bool {
			if !sorted[i].OriginalPrice.Equal(sorted[j].OriginalPrice) {
				return sorted[i].OriginalPrice.GreaterThan(sorted[j].OriginalPrice)
			}
			if !sorted[i].TradeDate.Equal(sorted[j].TradeDate) {
				return sorted[i].TradeDate.Before(sorted[j].TradeDate)
			}
			return sorted[i].InsertionOrder() < sorted[j].InsertionOrder()
		})
	default: // MethodFIFO
		sort.SliceStable(sorted, func(i, j int) bool {
			if !sorted[i].TradeDate.Equal(sorted[j].TradeDate) {
				return sorted[i].TradeDate.Before(sorted[j].TradeDate)
			}
			return sorted[i].InsertionOrder() < sorted[j].InsertionOrder()
		})
	}
	return sorted
}
