package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType enumerates the event types persisted in the event store
// (spec.md §3). NEW_TRADE/INCREASE/DECREASE mirror inbound TradeType;
// the remaining four are engine-internal.
type EventType string

const (
	EventNewTrade            EventType = "NEW_TRADE"
	EventIncrease            EventType = "INCREASE"
	EventDecrease            EventType = "DECREASE"
	EventReset               EventType = "RESET"
	EventPositionClosed      EventType = "POSITION_CLOSED"
	EventHistoricalCorrection EventType = "HISTORICAL_CORRECTION"
	EventProvisionalApplied  EventType = "PROVISIONAL_APPLIED"
)

// Allocation is a single lot-level effect of applying a trade: for an add,
// a single {lot, +qty, price, nil P&L}; for a reduce, one entry per lot
// consumed (spec.md §4.4).
type Allocation struct {
	LotID       int64
	Qty         decimal.Decimal
	Price       decimal.Decimal
	RealizedPnL *decimal.Decimal
}

// AllocationResult is the lot engine's output for one trade: the ordered
// list of allocations plus totals, serialized into an event's MetaLots
// field (spec.md §4.4).
type AllocationResult struct {
	Allocations     []Allocation
	TotalQty        decimal.Decimal
	TotalRealizedPnL decimal.Decimal
	// Approximate marks a provisional (hotpath-estimated) allocation that
	// was computed against current open lots rather than the lots that
	// would have existed at the backdated effective date (spec.md §9
	// open question 2).
	Approximate bool
}

// Event is one immutable row in the event store, keyed by
// (PositionKey, Version) (spec.md §3, §6).
type Event struct {
	PositionKey   PositionKey
	Version       int64
	Type          EventType
	EffectiveDate time.Time
	OccurredAt    time.Time
	Payload       Trade
	MetaLots      AllocationResult
	CorrelationID string
	CausationID   string
	ContractID    string
	UserID        string
}
