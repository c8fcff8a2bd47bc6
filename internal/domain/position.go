package domain

import "github.com/shopspring/decimal"

// Status is the position lifecycle status stored on the snapshot.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusTerminated Status = "TERMINATED"
)

// State is the state-machine state (spec.md §4.5). Status (above) is the
// two-valued projection of State that is actually persisted on the
// snapshot; State itself is only needed transiently while the state
// machine computes a transition.
type State string

const (
	StateNonExistent State = "NON_EXISTENT"
	StateActiveLong  State = "ACTIVE_LONG"
	StateActiveShort State = "ACTIVE_SHORT"
	StateTerminated  State = "TERMINATED"
)

// ReconciliationStatus reflects whether a snapshot is authoritative
// (RECONCILED), a hotpath estimate pending coldpath replay (PROVISIONAL),
// or awaiting its first write (PENDING — never actually persisted, but
// useful as the zero value before a position exists).
type ReconciliationStatus string

const (
	ReconciliationPending     ReconciliationStatus = "PENDING"
	ReconciliationProvisional ReconciliationStatus = "PROVISIONAL"
	ReconciliationReconciled  ReconciliationStatus = "RECONCILED"
)

// PositionState aggregates the in-memory working state the lot engine and
// state machine operate on: the ordered list of lots (insertion order =
// trade-date order for that position's construction) plus derived totals.
type PositionState struct {
	PositionKey PositionKey
	Direction   Direction
	State       State
	Lots        []*TaxLot
	nextLotID   int64
	nextInsSeq  int
}

// NewEmptyPositionState returns the zero position for a key: no lots, no
// direction yet, NON_EXISTENT.
func NewEmptyPositionState(key PositionKey) *PositionState {
	return &PositionState{PositionKey: key, State: StateNonExistent, nextLotID: 1}
}

// TotalRemainingQty sums RemainingQty across all lots (open and closed;
// closed lots contribute zero).
func (p *PositionState) TotalRemainingQty() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lots {
		total = total.Add(l.RemainingQty)
	}
	return total
}

// Exposure is Sigma remaining*currentRefPrice across all lots (spec.md §3).
func (p *PositionState) Exposure() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lots {
		total = total.Add(l.RemainingNotional())
	}
	return total
}

// OpenLotCount counts lots with RemainingQty > 0.
func (p *PositionState) OpenLotCount() int {
	n := 0
	for _, l := range p.Lots {
		if l.IsOpen() {
			n++
		}
	}
	return n
}

// SignedQty returns the total remaining quantity signed by direction:
// positive for long, negative for short. Used by the state machine to
// decide direction changes (spec.md §4.5's "post-trade signed quantity Q'").
func (p *PositionState) SignedQty() decimal.Decimal {
	total := p.TotalRemainingQty()
	if p.Direction == DirectionShort {
		return total.Neg()
	}
	return total
}

// NextLotID returns a fresh, position-scoped lot id and advances the
// counter. Lot ids only need to be unique within a position (spec.md §3).
func (p *PositionState) NextLotID() int64 {
	id := p.nextLotID
	p.nextLotID++
	return id
}

// NextInsertionOrder returns a fresh, monotonically increasing sequence
// number used to break FIFO/LIFO ties among same-date lots.
func (p *PositionState) NextInsertionOrder() int {
	n := p.nextInsSeq
	p.nextInsSeq++
	return n
}

// AppendLot appends a new lot to the position, wiring its insertion order.
func (p *PositionState) AppendLot(lot *TaxLot) {
	lot.SetInsertionOrder(p.NextInsertionOrder())
	p.Lots = append(p.Lots, lot)
}

// Status projects the internal State to the persisted two-valued Status.
func (s State) Status() Status {
	if s == StateTerminated || s == StateNonExistent {
		return StatusTerminated
	}
	return StatusActive
}

// DirectionOf projects State to a Direction; it returns "" for a
// direction-less state (NON_EXISTENT or TERMINATED).
func (s State) DirectionOf() Direction {
	switch s {
	case StateActiveLong:
		return DirectionLong
	case StateActiveShort:
		return DirectionShort
	default:
		return ""
	}
}

// IsActive reports whether the state has an associated direction.
func (s State) IsActive() bool {
	return s == StateActiveLong || s == StateActiveShort
}
