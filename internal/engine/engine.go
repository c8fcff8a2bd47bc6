// Package engine wires C1-C7 plus persistence and messaging into the
// single facade the transport layer (cmd/posengine) drives, generalizing
// the teacher's trader.go (one struct wiring one broker, one position, one
// mutex) into one wiring many positions behind a shared key-lock registry.
package engine

import (
	"context"
	"time"

	"github.com/chidi150c/posengine/internal/coldpath"
	"github.com/chidi150c/posengine/internal/contractrules"
	"github.com/chidi150c/posengine/internal/domain"
	"github.com/chidi150c/posengine/internal/hotpath"
	"github.com/chidi150c/posengine/internal/idempotency"
	"github.com/chidi150c/posengine/internal/keylock"
	"github.com/chidi150c/posengine/internal/messaging"
	"github.com/chidi150c/posengine/internal/persistence"
	"github.com/chidi150c/posengine/internal/retry"
	"github.com/chidi150c/posengine/internal/validator"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Deps are the concrete adapters Engine wires into the hotpath and
// coldpath. All fields except Logger are required; a nil Logger disables
// logging.
//
// Events and Snapshots are split into Hotpath*/Coldpath* variants because
// the two paths are meant to run against distinct connection pools
// (spec.md §5 "Connection pools"): a small, low-latency pool for the
// hotpath, and a larger, higher-latency-tolerant pool for the coldpath.
// Callers that don't need the separation (tests, single-pool deployments)
// may pass the same store instance for both.
type Deps struct {
	Validator     *validator.Validator
	Idempotency   idempotency.Store
	ContractRules contractrules.Provider

	HotpathEvents     persistence.EventStore
	HotpathSnapshots  persistence.SnapshotStore
	ColdpathEvents    persistence.EventStore
	ColdpathSnapshots persistence.SnapshotStore

	UPIs     persistence.UPIStore
	Producer messaging.Producer
	Consumer messaging.Consumer

	RetryBaseDelay    time.Duration
	RetryMaxRetries   int
	MaxReplayAttempts int

	Logger *zap.Logger
}

// Engine is the facade: submit a trade on the hotpath, or let the
// coldpath consumer reconcile backdated trades delivered asynchronously.
type Engine struct {
	hot      *hotpath.Processor
	cold     *coldpath.Replayer
	consumer messaging.Consumer
	log      *zap.Logger
}

// New builds an Engine from deps, sharing one keylock.Registry between the
// hotpath processor and the coldpath replayer (spec.md §5 "mutual
// exclusion" between hotpath and coldpath on the same key).
func New(deps Deps) *Engine {
	locks := keylock.New()

	hot := &hotpath.Processor{
		Validator:       deps.Validator,
		Idempotency:     deps.Idempotency,
		ContractRules:   deps.ContractRules,
		Events:          deps.HotpathEvents,
		Snapshots:       deps.HotpathSnapshots,
		UPIs:            deps.UPIs,
		Producer:        deps.Producer,
		Locks:           locks,
		RetryBaseDelay:  deps.RetryBaseDelay,
		RetryMaxRetries: deps.RetryMaxRetries,

		// Circuit breakers guard the hotpath's dependency calls so a
		// degraded dependency fails fast instead of collapsing tail
		// latency (spec.md §7). Thresholds are fixed rather than
		// config-driven: they are a last-resort safety valve, not a
		// per-deployment tuning knob.
		EventsBreaker:    retry.NewCircuitBreaker("hotpath.events", 5, 10*time.Second),
		SnapshotsBreaker: retry.NewCircuitBreaker("hotpath.snapshots", 5, 10*time.Second),
		ProducerBreaker:  retry.NewCircuitBreaker("hotpath.producer", 5, 10*time.Second),
	}

	cold := &coldpath.Replayer{
		ContractRules:     deps.ContractRules,
		Events:            deps.ColdpathEvents,
		Snapshots:         deps.ColdpathSnapshots,
		Producer:          deps.Producer,
		Locks:             locks,
		MaxReplayAttempts: deps.MaxReplayAttempts,
	}

	return &Engine{hot: hot, cold: cold, consumer: deps.Consumer, log: deps.Logger}
}

// SubmitTrade runs the hotpath apply protocol for trade (spec.md §4.6).
func (e *Engine) SubmitTrade(ctx context.Context, trade domain.Trade) error {
	err := e.hot.Apply(ctx, trade)
	if err != nil && e.log != nil {
		e.log.Warn("trade apply failed", zap.String("trade_id", trade.TradeID), zap.Error(err))
	}
	return err
}

// ApplyPriceReset runs C4's RESET operation (spec.md §4.4) for an existing
// active position, rewriting every open lot's current reference price.
func (e *Engine) ApplyPriceReset(ctx context.Context, key domain.PositionKey, newPrice decimal.Decimal, correlationID string) error {
	err := e.hot.ApplyPriceReset(ctx, key, newPrice, correlationID)
	if err != nil && e.log != nil {
		e.log.Warn("price reset failed", zap.String("position_key", string(key)), zap.Error(err))
	}
	return err
}

// RunColdpathConsumer subscribes the coldpath replayer to the
// backdated-trades channel and runs until ctx is canceled.
func (e *Engine) RunColdpathConsumer(ctx context.Context, decode func([]byte) (domain.Trade, error)) error {
	return e.consumer.Subscribe(ctx, messaging.TopicBackdatedTrades, func(ctx context.Context, key string, value []byte, headers []messaging.Header) error {
		trade, err := decode(value)
		if err != nil {
			if e.log != nil {
				e.log.Error("failed to decode backdated trade", zap.Error(err))
			}
			return err
		}
		return e.cold.Replay(ctx, trade)
	})
}
