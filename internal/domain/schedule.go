package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleEntry is one dated point in a position's price/quantity
// schedule: the total position quantity after an event's effective date,
// and the quantity-weighted average price of open lots at that moment
// (spec.md §3, §6). Notional is derived, not independently stored.
type ScheduleEntry struct {
	EffectiveDate time.Time
	Quantity      decimal.Decimal
	Price         decimal.Decimal
}

// Notional returns Quantity*Price for this entry.
func (e ScheduleEntry) Notional() decimal.Decimal {
	return e.Quantity.Mul(e.Price)
}

// Schedule is a time-indexed sequence of ScheduleEntry, kept in
// chronological order with at most one entry per date — same-date events
// overwrite the same entry (spec.md §3).
type Schedule struct {
	Unit     string
	Currency string
	Entries  []ScheduleEntry
}

// Upsert inserts or overwrites the entry for date, keeping Entries sorted
// ascending by EffectiveDate.
func (s *Schedule) Upsert(date time.Time, quantity, price decimal.Decimal) {
	for i := range s.Entries {
		if s.Entries[i].EffectiveDate.Equal(date) {
			s.Entries[i].Quantity = quantity
			s.Entries[i].Price = price
			return
		}
	}
	s.Entries = append(s.Entries, ScheduleEntry{EffectiveDate: date, Quantity: quantity, Price: price})
	sort.Slice(s.Entries, func(i, j int) bool {
		return s.Entries[i].EffectiveDate.Before(s.Entries[j].EffectiveDate)
	})
}

// WeightedAveragePrice computes the quantity-weighted average price of the
// open lots in state, used to populate a schedule entry after an apply.
func WeightedAveragePrice(state *PositionState) decimal.Decimal {
	totalQty := decimal.Zero
	totalNotional := decimal.Zero
	for _, l := range state.Lots {
		if !l.IsOpen() {
			continue
		}
		totalQty = totalQty.Add(l.RemainingQty)
		totalNotional = totalNotional.Add(l.RemainingQty.Mul(l.CurrentRefPrice))
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalNotional.Div(totalQty)
}
