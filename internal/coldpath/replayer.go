// Package coldpath implements C7: the backdated-trade replay engine
// (spec.md §4.7). Triggered by a message on the backdated-trades channel,
// it inserts the trade into its chronological place in the event store and
// rebuilds the authoritative snapshot from a full in-order replay.
package coldpath

import (
	"context"
	"time"

	"github.com/chidi150c/posengine/internal/contractrules"
	"github.com/chidi150c/posengine/internal/domain"
	"github.com/chidi150c/posengine/internal/keylock"
	"github.com/chidi150c/posengine/internal/lotengine"
	"github.com/chidi150c/posengine/internal/messaging"
	"github.com/chidi150c/posengine/internal/metrics"
	"github.com/chidi150c/posengine/internal/persistence"
	"github.com/chidi150c/posengine/internal/statemachine"
	"github.com/shopspring/decimal"
)

// Replayer runs the coldpath reconciliation protocol.
type Replayer struct {
	ContractRules contractrules.Provider
	Events        persistence.EventStore
	Snapshots     persistence.SnapshotStore
	Producer      messaging.Producer
	Locks         *keylock.Registry

	MaxReplayAttempts int
}

// Replay reconciles position key after the backdated trade arrives.
func (r *Replayer) Replay(ctx context.Context, trade domain.Trade) error {
	start := time.Now()
	defer func() { metrics.ColdpathLatencySeconds.Observe(time.Since(start).Seconds()) }()

	release := r.Locks.Lock(trade.PositionKey)
	defer release()

	maxAttempts := r.MaxReplayAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		done, err := r.attempt(ctx, trade)
		if err == persistence.ErrVersionConflict {
			continue
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return domain.NewEngineError(domain.ErrTransientConflict, trade.CorrelationID, "coldpath.replay",
		"exhausted snapshot version-conflict retries", persistence.ErrVersionConflict)
}

// attempt runs one pass of spec.md §4.7 steps 2-11. Returns done=true once
// the snapshot has been durably reconciled, and also done=true with nil
// error when the trade id is already reconciled (dedup, step 3).
func (r *Replayer) attempt(ctx context.Context, trade domain.Trade) (bool, error) {
	events, err := r.Events.LoadByKey(ctx, trade.PositionKey)
	if err != nil {
		return false, domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "coldpath.load_events", err.Error(), err)
	}

	for _, ev := range events {
		if ev.Type != domain.EventProvisionalApplied && ev.Payload.TradeID == trade.TradeID {
			return true, nil
		}
	}

	var maxVersion int64
	for _, ev := range events {
		if ev.Version > maxVersion {
			maxVersion = ev.Version
		}
	}
	newVersion := maxVersion + 1

	eventType := domain.EventType(trade.Type)
	newEvent := domain.Event{
		PositionKey:   trade.PositionKey,
		Version:       newVersion,
		Type:          eventType,
		EffectiveDate: trade.EffectiveDate,
		OccurredAt:    time.Now().UTC(),
		Payload:       trade,
		CorrelationID: trade.CorrelationID,
		CausationID:   trade.CausationID,
		ContractID:    trade.ContractID,
		UserID:        trade.UserID,
	}
	if err := r.Events.Append(ctx, newEvent); err != nil {
		return false, domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "coldpath.append_event", err.Error(), err)
	}

	allEvents, err := r.Events.LoadByKey(ctx, trade.PositionKey)
	if err != nil {
		return false, domain.NewEngineError(domain.ErrTransientDependency, trade.CorrelationID, "coldpath.reload_events", err.Error(), err)
	}

	beforeSnap, _ := r.Snapshots.Load(ctx, trade.PositionKey)

	state, finalState, err := r.replayEvents(ctx, allEvents)
	if err != nil {
		return false, err
	}

	var optLockVersion int64
	if beforeSnap != nil {
		optLockVersion = beforeSnap.OptLockVersion
	}
	upi := ""
	if beforeSnap != nil {
		upi = beforeSnap.UPI
	}

	newSnap := &domain.Snapshot{
		PositionKey:          trade.PositionKey,
		LastVersion:          newVersion + 1, // counts the HISTORICAL_CORRECTION event appended below
		UPI:                  upi,
		Status:               finalState.Status(),
		ReconciliationStatus: domain.ReconciliationReconciled,
		Lots:                 domain.CompressLots(state),
		Summary:              domain.SummarizeState(state),
		Direction:            state.Direction,
		LastUpdatedAt:        time.Now().UTC(),
	}
	if beforeSnap != nil {
		newSnap.Account = beforeSnap.Account
		newSnap.Instrument = beforeSnap.Instrument
		newSnap.Currency = beforeSnap.Currency
		newSnap.ContractID = beforeSnap.ContractID
	}
	newSnap.Schedule = rebuildSchedule(allEvents, state)

	if err := r.Snapshots.Save(ctx, newSnap, optLockVersion); err != nil {
		if err == persistence.ErrVersionConflict {
			metrics.VersionConflicts.WithLabelValues("coldpath").Inc()
		}
		return false, err
	}

	metrics.EventsApplied.WithLabelValues(string(eventType), "coldpath").Inc()

	correction := domain.Event{
		PositionKey:   trade.PositionKey,
		Version:       newVersion + 1,
		Type:          domain.EventHistoricalCorrection,
		EffectiveDate: trade.EffectiveDate,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: trade.CorrelationID,
		ContractID:    trade.ContractID,
	}
	if beforeSnap != nil {
		correction.MetaLots = domain.AllocationResult{
			TotalQty:         newSnap.Summary.TotalRemainingQty.Sub(beforeSnap.Summary.TotalRemainingQty),
			TotalRealizedPnL: decimal.Zero,
		}
	}
	_ = r.Events.Append(ctx, correction)

	_ = r.Producer.Publish(ctx, messaging.TopicHistoricalCorrected, string(trade.PositionKey), nil, nil)

	return true, nil
}

// replayEvents starts from an empty PositionState and applies every event
// in replay order, skipping PROVISIONAL_APPLIED entries (spec.md §4.7 step 8).
// RESET entries reprice the open lots without a state transition.
func (r *Replayer) replayEvents(ctx context.Context, events []domain.Event) (*domain.PositionState, domain.State, error) {
	state := domain.NewEmptyPositionState("")
	if len(events) > 0 {
		state = domain.NewEmptyPositionState(events[0].PositionKey)
	}
	current := domain.StateNonExistent

	for _, ev := range events {
		if ev.Type == domain.EventProvisionalApplied || ev.Type == domain.EventHistoricalCorrection {
			continue
		}
		if ev.Type == domain.EventReset {
			lotengine.ResetPrices(state, ev.Payload.Price)
			continue
		}

		tradeType := domain.TradeType(ev.Type)
		if ev.Type == domain.EventPositionClosed {
			tradeType = domain.TradeTypeDecrease
		}
		// A backdated trade can sort ahead of the event that opened the
		// position: an INCREASE replayed on an inactive position opens it,
		// and a later NEW_TRADE on an active position adds to it.
		if tradeType == domain.TradeTypeIncrease && !current.IsActive() {
			tradeType = domain.TradeTypeNew
		} else if tradeType == domain.TradeTypeNew && current.IsActive() {
			tradeType = domain.TradeTypeIncrease
		}

		outcome, err := statemachine.Decide(current, tradeType, state.SignedQty(), ev.Payload.Quantity, ev.Payload.Direction)
		if err != nil {
			return nil, "", domain.NewEngineError(domain.ErrFatalSystem, ev.CorrelationID, "coldpath.replay_invariant",
				"replay hit an invalid transition: "+err.Error(), err)
		}

		method, err := r.ContractRules.MethodFor(ctx, ev.ContractID)
		if err != nil {
			return nil, "", domain.NewEngineError(domain.ErrTransientDependency, ev.CorrelationID, "coldpath.contract_rules", err.Error(), err)
		}

		if state.Direction == "" {
			state.Direction = ev.Payload.Direction
			if state.Direction == "" {
				state.Direction = domain.DirectionLong
			}
		}

		switch tradeType {
		case domain.TradeTypeNew, domain.TradeTypeIncrease:
			lotengine.AddLot(state, ev.Payload)
		case domain.TradeTypeDecrease:
			if _, err := lotengine.ReduceLots(state, method, ev.Payload.Quantity, ev.Payload.Price, ev.CorrelationID); err != nil {
				return nil, "", domain.NewEngineError(domain.ErrFatalSystem, ev.CorrelationID, "coldpath.replay_invariant",
					"replay could not reduce lots: "+err.Error(), err)
			}
		}
		current = outcome.NextState
		state.State = current
	}
	return state, current, nil
}

// rebuildSchedule reconstructs the price/quantity schedule as if every
// non-provisional event were replayed in chronological order.
func rebuildSchedule(events []domain.Event, finalState *domain.PositionState) domain.Schedule {
	var schedule domain.Schedule
	for _, ev := range events {
		if ev.Type == domain.EventProvisionalApplied || ev.Type == domain.EventHistoricalCorrection {
			continue
		}
		schedule.Upsert(ev.EffectiveDate, ev.MetaLots.TotalQty, ev.Payload.Price)
	}
	return schedule
}
