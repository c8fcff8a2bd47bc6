// Package statemachine implements C5: the position lifecycle state machine
// (NON_EXISTENT / ACTIVE_LONG / ACTIVE_SHORT / TERMINATED) and the
// long<->short direction-change split (spec.md §4.5).
//
// Decide computes the transition arithmetically, from the position's
// pre-trade signed quantity and the trade's requested quantity, *before*
// the lot engine runs. This matters: if the hotpath ran C4's ReduceLots
// with the full requested quantity first, an over-sized DECREASE would
// simply fail with insufficient_quantity instead of triggering the
// direction-change split the spec requires.
package statemachine

import (
	"github.com/chidi150c/posengine/internal/domain"
	"github.com/shopspring/decimal"
)

// Outcome is the state machine's decision for one trade.
type Outcome struct {
	// NextState is the resulting state for the position key the trade
	// arrived on.
	NextState domain.State
	// DirectionChange is non-nil when the trade must be split into a
	// close-leg on this key and an open-leg on the opposite-direction key
	// (spec.md §4.5 "Direction change").
	DirectionChange *DirectionChangePlan
	// NewUPIGeneration is true when this transition must mint a new UPI
	// generation (NON_EXISTENT/TERMINATED -> active).
	NewUPIGeneration bool
	// TerminateUPI is true when this transition terminates the current
	// UPI generation (position fully closes, possibly as the close-leg of
	// a direction change).
	TerminateUPI bool
}

// DirectionChangePlan describes how to split a trade that crosses the zero
// line into a closing trade on the current key and an opening trade on the
// opposite-direction key (spec.md §4.5).
type DirectionChangePlan struct {
	// CloseQty is the quantity that fully closes the current position
	// (always equal to the position's pre-trade open quantity).
	CloseQty decimal.Decimal
	// OpenQty is |Q'|, the quantity opened on the new, opposite-direction
	// position key.
	OpenQty       decimal.Decimal
	OpenDirection domain.Direction
}

// Decide computes the transition for applying a trade of tradeType and
// (unsigned) tradeQty to a position currently in state with pre-trade
// signed quantity currentSignedQty (positive if long, negative if short,
// zero if NON_EXISTENT/TERMINATED). openDirection is consulted only for a
// NEW_TRADE on an inactive position, selecting which side the new position
// opens on (defaults to long when unset).
func Decide(state domain.State, tradeType domain.TradeType, currentSignedQty, tradeQty decimal.Decimal, openDirection domain.Direction) (Outcome, error) {
	switch state {
	case domain.StateNonExistent, domain.StateTerminated:
		return decideFromInactive(tradeType, tradeQty, openDirection)
	case domain.StateActiveLong, domain.StateActiveShort:
		return decideFromActive(state, tradeType, currentSignedQty, tradeQty)
	default:
		return Outcome{}, domain.NewEngineError(domain.ErrStateMachineInvalid, "", "statemachine.decide",
			"unknown state "+string(state), nil)
	}
}

func decideFromInactive(tradeType domain.TradeType, tradeQty decimal.Decimal, openDirection domain.Direction) (Outcome, error) {
	if tradeType != domain.TradeTypeNew {
		return Outcome{}, domain.NewEngineError(domain.ErrStateMachineInvalid, "", "statemachine.decide",
			string(tradeType)+" on an inactive position is invalid", nil)
	}
	next := domain.StateActiveLong
	if openDirection == domain.DirectionShort {
		next = domain.StateActiveShort
	}
	return Outcome{NextState: next, NewUPIGeneration: true}, nil
}

func decideFromActive(state domain.State, tradeType domain.TradeType, currentSignedQty, tradeQty decimal.Decimal) (Outcome, error) {
	direction := state.DirectionOf()

	switch tradeType {
	case domain.TradeTypeNew:
		return Outcome{}, domain.NewEngineError(domain.ErrStateMachineInvalid, "", "statemachine.decide",
			"NEW_TRADE on active position "+string(state)+" is invalid", nil)
	case domain.TradeTypeIncrease:
		// INCREASE only ever adds a lot in the existing direction; it can
		// never cross zero (spec.md §4.4 "Add lot").
		return Outcome{NextState: state}, nil
	case domain.TradeTypeDecrease:
		var signedAfter decimal.Decimal
		if direction == domain.DirectionLong {
			signedAfter = currentSignedQty.Sub(tradeQty)
		} else {
			signedAfter = currentSignedQty.Add(tradeQty)
		}
		switch {
		case signedAfter.IsZero():
			return Outcome{NextState: domain.StateTerminated, TerminateUPI: true}, nil
		case direction == domain.DirectionLong && signedAfter.GreaterThan(decimal.Zero):
			return Outcome{NextState: domain.StateActiveLong}, nil
		case direction == domain.DirectionShort && signedAfter.LessThan(decimal.Zero):
			return Outcome{NextState: domain.StateActiveShort}, nil
		default:
			return directionChangeOutcome(direction, currentSignedQty, signedAfter)
		}
	default:
		return Outcome{}, domain.NewEngineError(domain.ErrStateMachineInvalid, "", "statemachine.decide",
			"unsupported trade type "+string(tradeType), nil)
	}
}

func directionChangeOutcome(currentDirection domain.Direction, currentSignedQty, signedAfter decimal.Decimal) (Outcome, error) {
	return Outcome{
		NextState:    domain.StateTerminated,
		TerminateUPI: true,
		DirectionChange: &DirectionChangePlan{
			CloseQty:      currentSignedQty.Abs(),
			OpenQty:       signedAfter.Abs(),
			OpenDirection: currentDirection.Opposite(),
		},
	}, nil
}
