// Package domain holds the core types shared across the position
// management engine: the inbound trade contract, tax lots, position state,
// the price/quantity schedule, events, snapshots, idempotency and UPI
// records, and the typed error kinds the engine returns.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeType enumerates the inbound trade types the engine accepts.
// RESET, POSITION_CLOSED, HISTORICAL_CORRECTION and PROVISIONAL_APPLIED are
// engine-internal event types (see EventType) and are never inbound trade
// types — a trade arriving with one of those is a validation failure.
type TradeType string

const (
	TradeTypeNew      TradeType = "NEW_TRADE"
	TradeTypeIncrease TradeType = "INCREASE"
	TradeTypeDecrease TradeType = "DECREASE"
)

// Direction is part of the position key: a given (account, instrument,
// currency) has up to two position keys, one per direction.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Trade is the inbound trade contract (spec.md §6). PositionKey may be
// empty, in which case the caller supplies Account/Instrument/Currency and
// the engine derives the key once Direction is known (NEW_TRADE on a fresh
// key defaults to long unless the caller states otherwise).
type Trade struct {
	TradeID        string
	PositionKey    PositionKey
	Account        string
	Instrument     string
	Currency       string
	Direction      Direction
	Type           TradeType
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	EffectiveDate  time.Time
	SettlementDate *time.Time
	ContractID     string
	CorrelationID  string
	CausationID    string
	UserID         string
}

// WithSettlementDate returns the settlement date, defaulting to the
// effective date per spec.md §3 ("Tax Lot ... settlement date (defaults to
// trade date)").
func (t Trade) WithSettlementDate() time.Time {
	if t.SettlementDate != nil {
		return *t.SettlementDate
	}
	return t.EffectiveDate
}
