// Package validator implements C1: reject malformed/business-invalid
// trades up front (spec.md §4.1). Rejected trades are never passed to the
// idempotency store, classifier, hotpath, or coldpath.
package validator

import (
	"regexp"
	"time"

	"github.com/chidi150c/posengine/internal/domain"
	"github.com/shopspring/decimal"
)

// positionKeyFormat bounds the accepted position-key charset/length when a
// caller supplies one directly (spec.md §4.1 "position-key length or
// charset outside the accepted format"). Keys derived by the engine itself
// (domain.DerivePositionKey) always satisfy this.
var positionKeyFormat = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,128}$`)

var acceptedTradeTypes = map[domain.TradeType]bool{
	domain.TradeTypeNew:      true,
	domain.TradeTypeIncrease: true,
	domain.TradeTypeDecrease: true,
}

// Result is the validator's output: Accepted, or Accepted=false with an
// ordered list of human-readable reasons (spec.md §4.1).
type Result struct {
	Accepted bool
	Reasons  []string
}

// Validator holds the one configurable rule: how far into the future an
// effective date may be before it is rejected.
type Validator struct {
	FutureHorizon time.Duration
}

// New builds a Validator with the given future-dating horizon.
func New(futureHorizon time.Duration) *Validator {
	return &Validator{FutureHorizon: futureHorizon}
}

// Validate runs every rule in spec.md §4.1 against trade and returns a
// Result with every violated rule's reason, in a stable order.
func (v *Validator) Validate(trade domain.Trade, now time.Time) Result {
	var reasons []string

	if trade.TradeID == "" {
		reasons = append(reasons, "missing trade id")
	}
	if trade.PositionKey == "" && (trade.Account == "" || trade.Instrument == "" || trade.Currency == "") {
		reasons = append(reasons, "missing position key")
	}
	if trade.PositionKey != "" && !positionKeyFormat.MatchString(string(trade.PositionKey)) {
		reasons = append(reasons, "position key has an invalid length or charset")
	}
	if trade.Type == "" {
		reasons = append(reasons, "missing trade type")
	} else if !acceptedTradeTypes[trade.Type] {
		reasons = append(reasons, "trade type must be one of NEW_TRADE, INCREASE, DECREASE")
	}
	if trade.EffectiveDate.IsZero() {
		reasons = append(reasons, "missing effective date")
	} else if v.FutureHorizon > 0 && trade.EffectiveDate.After(now.Add(v.FutureHorizon)) {
		reasons = append(reasons, "effective date is further in the future than the accepted horizon")
	}
	if trade.Quantity.LessThanOrEqual(decimal.Zero) {
		reasons = append(reasons, "quantity must be greater than zero")
	}
	if trade.Price.LessThanOrEqual(decimal.Zero) {
		reasons = append(reasons, "price must be greater than zero")
	}

	return Result{Accepted: len(reasons) == 0, Reasons: reasons}
}

// ToEngineError converts a rejected Result into the typed validation error
// the rest of the engine expects (spec.md §7 "validation_failed").
func (r Result) ToEngineError(correlationID string) error {
	if r.Accepted {
		return nil
	}
	msg := "trade rejected: "
	for i, reason := range r.Reasons {
		if i > 0 {
			msg += "; "
		}
		msg += reason
	}
	return domain.NewEngineError(domain.ErrValidationFailed, correlationID, "validator.validate", msg, nil)
}
