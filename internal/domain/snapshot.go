package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompressedLots is the space-saving wire/storage representation of a
// position's lots: parallel arrays, index i describes lot i (spec.md §6).
type CompressedLots struct {
	IDs             []int64
	TradeDates      []time.Time
	OriginalPrices  []decimal.Decimal
	CurrentPrices   []decimal.Decimal
	OriginalQtys    []decimal.Decimal
	RemainingQtys   []decimal.Decimal
	SettlementDates []time.Time
	SettledQtys     []decimal.Decimal
}

// CompressLots converts a PositionState's lots into the parallel-array wire
// format.
func CompressLots(state *PositionState) CompressedLots {
	c := CompressedLots{}
	for _, l := range state.Lots {
		c.IDs = append(c.IDs, l.LotID)
		c.TradeDates = append(c.TradeDates, l.TradeDate)
		c.OriginalPrices = append(c.OriginalPrices, l.OriginalPrice)
		c.CurrentPrices = append(c.CurrentPrices, l.CurrentRefPrice)
		c.OriginalQtys = append(c.OriginalQtys, l.OriginalQty)
		c.RemainingQtys = append(c.RemainingQtys, l.RemainingQty)
		c.SettlementDates = append(c.SettlementDates, l.SettlementDate)
		c.SettledQtys = append(c.SettledQtys, l.SettledQty)
	}
	return c
}

// Inflate reconstructs a PositionState's lot list from compressed form.
// Insertion order is taken to be array order, matching CompressLots.
func (c CompressedLots) Inflate(key PositionKey, direction Direction, state State) *PositionState {
	p := NewEmptyPositionState(key)
	p.Direction = direction
	p.State = state
	var maxID int64
	for i := range c.IDs {
		lot := &TaxLot{
			LotID:           c.IDs[i],
			TradeDate:       c.TradeDates[i],
			SettlementDate:  c.SettlementDates[i],
			OriginalPrice:   c.OriginalPrices[i],
			CurrentRefPrice: c.CurrentPrices[i],
			OriginalQty:     c.OriginalQtys[i],
			RemainingQty:    c.RemainingQtys[i],
			SettledQty:      c.SettledQtys[i],
		}
		p.AppendLot(lot)
		if lot.LotID > maxID {
			maxID = lot.LotID
		}
	}
	p.nextLotID = maxID + 1
	return p
}

// SummaryMetrics is the derived-totals part of a snapshot.
type SummaryMetrics struct {
	TotalRemainingQty decimal.Decimal
	Exposure          decimal.Decimal
	OpenLotCount      int
}

// SummarizeState builds SummaryMetrics from a PositionState.
func SummarizeState(state *PositionState) SummaryMetrics {
	return SummaryMetrics{
		TotalRemainingQty: state.TotalRemainingQty(),
		Exposure:          state.Exposure(),
		OpenLotCount:      state.OpenLotCount(),
	}
}

// Snapshot is the per-position persisted view (spec.md §3, §6). Exactly
// one snapshot exists per position key; it is overwritten in place, guarded
// by OptLockVersion.
type Snapshot struct {
	PositionKey          PositionKey
	LastVersion          int64
	UPI                  string
	Status               Status
	ReconciliationStatus ReconciliationStatus
	ProvisionalTradeID   string
	Lots                 CompressedLots
	Summary              SummaryMetrics
	Schedule             Schedule
	OptLockVersion        int64
	LastUpdatedAt        time.Time
	ArchivalFlag         bool
	ArchivedAt           *time.Time

	Account    string
	Instrument string
	Currency   string
	Direction  Direction
	ContractID string
}

// Inflate reconstructs the working PositionState from a snapshot.
func (s *Snapshot) Inflate() *PositionState {
	state := StateNonExistent
	if s.Status == StatusActive {
		if s.Direction == DirectionShort {
			state = StateActiveShort
		} else {
			state = StateActiveLong
		}
	} else if s.LastVersion > 0 {
		state = StateTerminated
	}
	return s.Lots.Inflate(s.PositionKey, s.Direction, state)
}

// Archive marks the snapshot administratively archived and prunes closed
// lots from the compressed arrays (spec.md §9 open question 4 — archival
// is purely administrative, no functional effect on replay/classification).
func (s *Snapshot) Archive(now time.Time) {
	s.ArchivalFlag = true
	t := now
	s.ArchivedAt = &t

	var kept CompressedLots
	for i, qty := range s.Lots.RemainingQtys {
		if qty.GreaterThan(decimal.Zero) {
			kept.IDs = append(kept.IDs, s.Lots.IDs[i])
			kept.TradeDates = append(kept.TradeDates, s.Lots.TradeDates[i])
			kept.OriginalPrices = append(kept.OriginalPrices, s.Lots.OriginalPrices[i])
			kept.CurrentPrices = append(kept.CurrentPrices, s.Lots.CurrentPrices[i])
			kept.OriginalQtys = append(kept.OriginalQtys, s.Lots.OriginalQtys[i])
			kept.RemainingQtys = append(kept.RemainingQtys, qty)
			kept.SettlementDates = append(kept.SettlementDates, s.Lots.SettlementDates[i])
			kept.SettledQtys = append(kept.SettledQtys, s.Lots.SettledQtys[i])
		}
	}
	s.Lots = kept
}
