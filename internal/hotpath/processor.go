// Package hotpath implements C6: the synchronous, per-key-serialized apply
// protocol for CURRENT_DATED and FORWARD_DATED trades (spec.md §4.6),
// including the provisional-estimate path for a trade that turns out to be
// BACKDATED. Generalizes the teacher's step.go "evaluate and mutate" tick
// (one synchronized pass over a single position) into a protocol over an
// event-sourced, per-key-locked position.
package hotpath

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	backoffpkg "github.com/cenkalti/backoff/v4"
	"github.com/chidi150c/posengine/internal/classifier"
	"github.com/chidi150c/posengine/internal/contractrules"
	"github.com/chidi150c/posengine/internal/domain"
	"github.com/chidi150c/posengine/internal/idempotency"
	"github.com/chidi150c/posengine/internal/keylock"
	"github.com/chidi150c/posengine/internal/lotengine"
	"github.com/chidi150c/posengine/internal/messaging"
	"github.com/chidi150c/posengine/internal/metrics"
	"github.com/chidi150c/posengine/internal/persistence"
	"github.com/chidi150c/posengine/internal/retry"
	"github.com/chidi150c/posengine/internal/statemachine"
	"github.com/chidi150c/posengine/internal/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Processor runs the hotpath apply protocol. It does not validate
// transport concerns (deserialization, consumer offsets); callers own
// that.
type Processor struct {
	Validator     *validator.Validator
	Idempotency   idempotency.Store
	ContractRules contractrules.Provider
	Events        persistence.EventStore
	Snapshots     persistence.SnapshotStore
	UPIs          persistence.UPIStore
	Producer      messaging.Producer
	Locks         *keylock.Registry

	RetryBaseDelay  time.Duration
	RetryMaxRetries int

	// EventsBreaker, SnapshotsBreaker and ProducerBreaker guard the
	// hotpath's calls to those dependencies. While a breaker is open the
	// guarded call fails at once with retry.ErrCircuitOpen: a failed append
	// or save fails the trade, a failed provisional publish fails the trade,
	// and other failed publishes are dropped. Nil breakers are allowed
	// (tests commonly leave them unset) and simply pass every call through.
	EventsBreaker    *retry.CircuitBreaker
	SnapshotsBreaker *retry.CircuitBreaker
	ProducerBreaker  *retry.CircuitBreaker
}

// callThrough runs op through b, or directly if b is nil.
func callThrough(b *retry.CircuitBreaker, op func() error) error {
	if b == nil {
		return op()
	}
	return b.Call(op)
}

// Apply runs the full hotpath protocol for one trade: validate, check
// idempotency, classify, and either apply (CURRENT_DATED/FORWARD_DATED) or
// take the provisional path and route to coldpath (BACKDATED).
func (p *Processor) Apply(ctx context.Context, trade domain.Trade) error {
	start := time.Now()
	defer func() { metrics.HotpathLatencySeconds.Observe(time.Since(start).Seconds()) }()

	if res := p.Validator.Validate(trade, time.Now()); !res.Accepted {
		err := res.ToEngineError(trade.CorrelationID)
		metrics.TradesRejected.WithLabelValues(string(domain.ErrValidationFailed)).Inc()
		metrics.DeadLettered.WithLabelValues(string(domain.ErrValidationFailed)).Inc()
		return err
	}

	if trade.PositionKey == "" {
		direction := trade.Direction
		if direction == "" {
			direction = domain.DirectionLong
		}
		trade.PositionKey = domain.DerivePositionKey(trade.Account, trade.Instrument, trade.Currency, direction)
	}

	already, err := p.Idempotency.IsProcessed(ctx, trade.TradeID)
	if err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.idempotency_check", err.Error(), err)
	}
	if already {
		return nil
	}

	release := p.Locks.Lock(trade.PositionKey)
	defer release()

	snap, err := p.loadSnapshot(ctx, trade.PositionKey)
	if err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.load_snapshot", err.Error(), err)
	}

	class := classify(snap, trade.EffectiveDate, time.Now())
	if class == classifier.BackDated {
		return p.applyProvisional(ctx, trade, snap)
	}

	return p.applyCurrent(ctx, trade, snap)
}

func classify(snap *domain.Snapshot, effectiveDate, now time.Time) classifier.Classification {
	if snap == nil {
		return classifier.CurrentDated
	}
	lastEventDate := lastEffectiveDate(snap)
	return classifier.Classify(true, lastEventDate, effectiveDate, now)
}

// lastEffectiveDate approximates the snapshot's last event's effective
// date using the latest schedule entry, since the snapshot does not carry
// the raw event list (that lives in the event store).
func lastEffectiveDate(snap *domain.Snapshot) time.Time {
	if len(snap.Schedule.Entries) == 0 {
		return time.Time{}
	}
	return snap.Schedule.Entries[len(snap.Schedule.Entries)-1].EffectiveDate
}

func (p *Processor) loadSnapshot(ctx context.Context, key domain.PositionKey) (*domain.Snapshot, error) {
	snap, err := p.Snapshots.Load(ctx, key)
	if err == persistence.ErrNotFound {
		return nil, nil
	}
	return snap, err
}

// applyCurrent runs steps 1-10 of spec.md §4.6 for one CURRENT_DATED or
// FORWARD_DATED trade, retrying from the top on a snapshot version
// conflict per the bounded schedule.
func (p *Processor) applyCurrent(ctx context.Context, trade domain.Trade, snap *domain.Snapshot) error {
	b := retry.VersionConflictBackoff(p.RetryBaseDelay, p.RetryMaxRetries)

	var lastErr error
	op := func() error {
		fresh, err := p.loadSnapshot(ctx, trade.PositionKey)
		if err != nil {
			return backoffPermanent(err)
		}
		err = p.applyOnce(ctx, trade, fresh)
		if err == persistence.ErrVersionConflict {
			metrics.VersionConflicts.WithLabelValues("hotpath").Inc()
			lastErr = err
			return err
		}
		if err != nil {
			lastErr = err
			return backoffPermanent(err)
		}
		lastErr = nil
		return nil
	}

	if err := backoffRetry(op, b); err != nil {
		if lastErr == persistence.ErrVersionConflict {
			return domain.NewEngineError(domain.ErrTransientConflict, trade.CorrelationID, "hotpath.apply", "exhausted version-conflict retries", persistence.ErrVersionConflict)
		}
		return lastErr
	}
	return nil
}

// applyOnce is a single, non-retried pass of the apply protocol (spec.md
// §4.6 steps 2-10) against the snapshot state loaded by the caller.
func (p *Processor) applyOnce(ctx context.Context, trade domain.Trade, snap *domain.Snapshot) error {
	var version int64
	var optLockVersion int64
	state := domain.NewEmptyPositionState(trade.PositionKey)
	upi := ""

	if snap != nil {
		version = snap.LastVersion
		optLockVersion = snap.OptLockVersion
		state = snap.Inflate()
		upi = snap.UPI
	}

	outcome, err := statemachine.Decide(state.State, trade.Type, state.SignedQty(), trade.Quantity, trade.Direction)
	if err != nil {
		metrics.DeadLettered.WithLabelValues(string(domain.ErrStateMachineInvalid)).Inc()
		return err
	}

	if outcome.DirectionChange != nil {
		return p.applyDirectionChange(ctx, trade, snap, state, outcome, version, optLockVersion, upi)
	}

	method, err := p.ContractRules.MethodFor(ctx, trade.ContractID)
	if err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.contract_rules", err.Error(), err)
	}

	alloc, eventType, err := applyTrade(state, trade, method)
	if err != nil {
		return err
	}

	newVersion := version + 1
	if outcome.NewUPIGeneration {
		upi = uuid.NewString()
	}

	ev := domain.Event{
		PositionKey:   trade.PositionKey,
		Version:       newVersion,
		Type:          eventType,
		EffectiveDate: trade.EffectiveDate,
		OccurredAt:    time.Now().UTC(),
		Payload:       trade,
		MetaLots:      alloc,
		CorrelationID: trade.CorrelationID,
		CausationID:   trade.CausationID,
		ContractID:    trade.ContractID,
		UserID:        trade.UserID,
	}
	if err := callThrough(p.EventsBreaker, func() error { return p.Events.Append(ctx, ev) }); err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.append_event", err.Error(), err)
	}

	if err := p.updateUPIHistory(ctx, trade, outcome, upi); err != nil {
		return err
	}

	newSnap := buildSnapshot(trade.PositionKey, state, outcome.NextState, newVersion, upi, snap, trade.EffectiveDate)
	newSnap.ReconciliationStatus = domain.ReconciliationReconciled

	if err := callThrough(p.SnapshotsBreaker, func() error { return p.Snapshots.Save(ctx, newSnap, optLockVersion) }); err != nil {
		return err
	}

	alreadyProcessed, err := p.Idempotency.Mark(ctx, trade.TradeID, trade.PositionKey, newVersion)
	if err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.mark_idempotency", err.Error(), err)
	}
	_ = alreadyProcessed

	metrics.EventsApplied.WithLabelValues(string(eventType), "hotpath").Inc()

	payload, _ := json.Marshal(ev)
	_ = callThrough(p.ProducerBreaker, func() error {
		return p.Producer.Publish(ctx, messaging.TopicTradeApplied, string(trade.PositionKey), payload, nil)
	})

	return nil
}

// applyTrade mutates state in place via the lot engine and returns the
// allocation result and the event type to record.
func applyTrade(state *domain.PositionState, trade domain.Trade, method lotengine.Method) (domain.AllocationResult, domain.EventType, error) {
	switch trade.Type {
	case domain.TradeTypeNew, domain.TradeTypeIncrease:
		state.Direction = directionForAdd(state, trade)
		alloc := lotengine.AddLot(state, trade)
		eventType := domain.EventIncrease
		if trade.Type == domain.TradeTypeNew {
			eventType = domain.EventNewTrade
		}
		return alloc, eventType, nil
	case domain.TradeTypeDecrease:
		alloc, err := lotengine.ReduceLots(state, method, trade.Quantity, trade.Price, trade.CorrelationID)
		if err != nil {
			return domain.AllocationResult{}, "", err
		}
		return alloc, domain.EventDecrease, nil
	default:
		return domain.AllocationResult{}, "", domain.NewEngineError(domain.ErrValidationFailed, trade.CorrelationID, "hotpath.apply_trade", "unsupported trade type "+string(trade.Type), nil)
	}
}

func directionForAdd(state *domain.PositionState, trade domain.Trade) domain.Direction {
	if state.Direction != "" {
		return state.Direction
	}
	if trade.Direction != "" {
		return trade.Direction
	}
	return domain.DirectionLong
}

// applyDirectionChange executes spec.md §4.5's split: a synthesized
// DECREASE that fully closes the current key, then a synthesized
// NEW_TRADE on the opposite-direction key, sharing one correlation id.
func (p *Processor) applyDirectionChange(ctx context.Context, trade domain.Trade, snap *domain.Snapshot, state *domain.PositionState, outcome statemachine.Outcome, version, optLockVersion int64, upi string) error {
	method, err := p.ContractRules.MethodFor(ctx, trade.ContractID)
	if err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.contract_rules", err.Error(), err)
	}

	closeTrade := trade
	closeTrade.Type = domain.TradeTypeDecrease
	closeTrade.Quantity = outcome.DirectionChange.CloseQty

	alloc, err := lotengine.ReduceLots(state, method, closeTrade.Quantity, closeTrade.Price, closeTrade.CorrelationID)
	if err != nil {
		return err
	}

	newVersion := version + 1
	ev := domain.Event{
		PositionKey:   trade.PositionKey,
		Version:       newVersion,
		Type:          domain.EventPositionClosed,
		EffectiveDate: trade.EffectiveDate,
		OccurredAt:    time.Now().UTC(),
		Payload:       closeTrade,
		MetaLots:      alloc,
		CorrelationID: trade.CorrelationID,
		CausationID:   trade.CausationID,
		ContractID:    trade.ContractID,
		UserID:        trade.UserID,
	}
	if err := callThrough(p.EventsBreaker, func() error { return p.Events.Append(ctx, ev) }); err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.append_event", err.Error(), err)
	}

	if err := p.UPIs.TerminateCurrent(ctx, trade.PositionKey, ev.OccurredAt); err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.terminate_upi", err.Error(), err)
	}

	newSnap := buildSnapshot(trade.PositionKey, state, domain.StateTerminated, newVersion, upi, snap, trade.EffectiveDate)
	newSnap.ReconciliationStatus = domain.ReconciliationReconciled
	if err := callThrough(p.SnapshotsBreaker, func() error { return p.Snapshots.Save(ctx, newSnap, optLockVersion) }); err != nil {
		return err
	}

	alreadyProcessed, err := p.Idempotency.Mark(ctx, trade.TradeID, trade.PositionKey, newVersion)
	if err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.mark_idempotency", err.Error(), err)
	}
	_ = alreadyProcessed

	metrics.EventsApplied.WithLabelValues(string(domain.EventPositionClosed), "hotpath").Inc()
	metrics.DirectionChanges.Inc()

	payload, _ := json.Marshal(ev)
	_ = callThrough(p.ProducerBreaker, func() error {
		return p.Producer.Publish(ctx, messaging.TopicTradeApplied, string(trade.PositionKey), payload, nil)
	})

	openTrade := trade
	openTrade.TradeID = trade.TradeID + "::flip"
	openTrade.Type = domain.TradeTypeNew
	openTrade.Direction = outcome.DirectionChange.OpenDirection
	openTrade.Quantity = outcome.DirectionChange.OpenQty
	openTrade.PositionKey = domain.DerivePositionKey(trade.Account, trade.Instrument, trade.Currency, outcome.DirectionChange.OpenDirection)

	return p.Apply(ctx, openTrade)
}

func (p *Processor) updateUPIHistory(ctx context.Context, trade domain.Trade, outcome statemachine.Outcome, upi string) error {
	if outcome.NewUPIGeneration {
		history, err := p.UPIs.History(ctx, trade.PositionKey)
		if err != nil {
			return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.upi_history", err.Error(), err)
		}
		if err := p.UPIs.AppendGeneration(ctx, domain.UPIRecord{
			PositionKey: trade.PositionKey,
			Generation:  len(history) + 1,
			UPI:         upi,
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.upi_append", err.Error(), err)
		}
	}
	if outcome.TerminateUPI {
		if err := p.UPIs.TerminateCurrent(ctx, trade.PositionKey, time.Now().UTC()); err != nil {
			return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.upi_terminate", err.Error(), err)
		}
	}
	return nil
}

func buildSnapshot(key domain.PositionKey, state *domain.PositionState, nextState domain.State, version int64, upi string, prev *domain.Snapshot, effectiveDate time.Time) *domain.Snapshot {
	state.State = nextState
	snap := &domain.Snapshot{
		PositionKey: key,
		LastVersion: version,
		UPI:         upi,
		Status:      nextState.Status(),
		Lots:        domain.CompressLots(state),
		Summary:     domain.SummarizeState(state),
		Direction:   state.Direction,
	}
	if prev != nil {
		snap.Account = prev.Account
		snap.Instrument = prev.Instrument
		snap.Currency = prev.Currency
		snap.ContractID = prev.ContractID
		snap.Schedule = prev.Schedule
	}
	avgPrice := domain.WeightedAveragePrice(state)
	snap.Schedule.Upsert(effectiveDate, state.TotalRemainingQty(), avgPrice)
	return snap
}

// applyProvisional implements spec.md §4.6's "Provisional handling for
// backdated trades": a dirty estimate applied as if current-dated, marked
// PROVISIONAL, then routed to the coldpath for authoritative replay.
func (p *Processor) applyProvisional(ctx context.Context, trade domain.Trade, snap *domain.Snapshot) error {
	var version, optLockVersion int64
	state := domain.NewEmptyPositionState(trade.PositionKey)
	upi := ""
	if snap != nil {
		version = snap.LastVersion
		optLockVersion = snap.OptLockVersion
		state = snap.Inflate()
		upi = snap.UPI
	}

	// The provisional estimate always uses FIFO on the current open lots;
	// the coldpath replay applies the contract's method.
	alloc, _, err := applyTrade(state, trade, lotengine.MethodFIFO)
	if err != nil {
		return err
	}
	alloc.Approximate = true

	newVersion := version + 1
	ev := domain.Event{
		PositionKey:   trade.PositionKey,
		Version:       newVersion,
		Type:          domain.EventProvisionalApplied,
		EffectiveDate: trade.EffectiveDate,
		OccurredAt:    time.Now().UTC(),
		Payload:       trade,
		MetaLots:      alloc,
		CorrelationID: trade.CorrelationID,
		CausationID:   trade.CausationID,
		ContractID:    trade.ContractID,
		UserID:        trade.UserID,
	}
	if err := callThrough(p.EventsBreaker, func() error { return p.Events.Append(ctx, ev) }); err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.append_event", err.Error(), err)
	}

	newSnap := buildSnapshot(trade.PositionKey, state, state.State, newVersion, upi, snap, trade.EffectiveDate)
	newSnap.ReconciliationStatus = domain.ReconciliationProvisional
	newSnap.ProvisionalTradeID = trade.TradeID

	if err := callThrough(p.SnapshotsBreaker, func() error { return p.Snapshots.Save(ctx, newSnap, optLockVersion) }); err != nil {
		return err
	}

	metrics.EventsApplied.WithLabelValues(string(domain.EventProvisionalApplied), "hotpath").Inc()
	metrics.ProvisionalApplied.Inc()

	payload, _ := json.Marshal(trade)
	if err := callThrough(p.ProducerBreaker, func() error {
		return p.Producer.Publish(ctx, messaging.TopicProvisionalApplied, string(trade.PositionKey), payload, nil)
	}); err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "hotpath.publish_provisional", err.Error(), err)
	}
	return callThrough(p.ProducerBreaker, func() error {
		return p.Producer.Publish(ctx, messaging.TopicBackdatedTrades, string(trade.PositionKey), payload, nil)
	})
}

// ApplyPriceReset implements C4's "Price reset (market data)" operation
// (spec.md §4.4): it rewrites every open lot's current reference price to
// newPrice via the lot engine, appends a RESET event, and rewrites the
// snapshot. It never touches a lot's original price or realized P&L.
func (p *Processor) ApplyPriceReset(ctx context.Context, key domain.PositionKey, newPrice decimal.Decimal, correlationID string) error {
	release := p.Locks.Lock(key)
	defer release()

	snap, err := p.loadSnapshot(ctx, key)
	if err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, correlationID, "hotpath.load_snapshot", err.Error(), err)
	}
	if snap == nil || snap.Status != domain.StatusActive {
		return domain.NewEngineError(domain.ErrValidationFailed, correlationID, "hotpath.apply_price_reset", "no active position for "+string(key), nil)
	}

	state := snap.Inflate()
	lotengine.ResetPrices(state, newPrice)

	newVersion := snap.LastVersion + 1
	ev := domain.Event{
		PositionKey:   key,
		Version:       newVersion,
		Type:          domain.EventReset,
		EffectiveDate: time.Now().UTC(),
		OccurredAt:    time.Now().UTC(),
		Payload:       domain.Trade{PositionKey: key, Price: newPrice, EffectiveDate: time.Now().UTC(), CorrelationID: correlationID},
		CorrelationID: correlationID,
		ContractID:    snap.ContractID,
	}
	if err := callThrough(p.EventsBreaker, func() error { return p.Events.Append(ctx, ev) }); err != nil {
		return domain.NewEngineError(domain.ErrTransientDependency, correlationID, "hotpath.append_event", err.Error(), err)
	}

	newSnap := buildSnapshot(key, state, state.State, newVersion, snap.UPI, snap, ev.EffectiveDate)
	newSnap.ReconciliationStatus = snap.ReconciliationStatus
	newSnap.ProvisionalTradeID = snap.ProvisionalTradeID

	if err := callThrough(p.SnapshotsBreaker, func() error { return p.Snapshots.Save(ctx, newSnap, snap.OptLockVersion) }); err != nil {
		return err
	}

	metrics.EventsApplied.WithLabelValues(string(domain.EventReset), "hotpath").Inc()

	payload, _ := json.Marshal(ev)
	_ = callThrough(p.ProducerBreaker, func() error {
		return p.Producer.Publish(ctx, messaging.TopicTradeApplied, string(key), payload, nil)
	})

	return nil
}

// backoffPermanent marks err so the retry loop stops immediately instead
// of exhausting the version-conflict schedule on a non-conflict failure.
func backoffPermanent(err error) error {
	if err == nil {
		return nil
	}
	return backoffpkg.Permanent(err)
}

// backoffRetry runs op under b, returning the last error (unwrapped from
// backoff.PermanentError so callers see the original error).
func backoffRetry(op func() error, b backoffpkg.BackOff) error {
	err := backoffpkg.Retry(op, b)
	var perm *backoffpkg.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
