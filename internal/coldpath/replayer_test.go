package coldpath

import (
	"context"
	"testing"
	"time"

	"github.com/chidi150c/posengine/internal/contractrules"
	"github.com/chidi150c/posengine/internal/domain"
	"github.com/chidi150c/posengine/internal/hotpath"
	idemmemory "github.com/chidi150c/posengine/internal/idempotency/memory"
	"github.com/chidi150c/posengine/internal/keylock"
	msgmemory "github.com/chidi150c/posengine/internal/messaging/memory"
	persmemory "github.com/chidi150c/posengine/internal/persistence/memory"
	"github.com/chidi150c/posengine/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }

// TestBackdatedTradeReconciledByColdpath mirrors spec.md §8 scenario S6: a
// hotpath current-dated sequence, then a trade whose effective date falls
// before the snapshot's latest known event date, requiring coldpath
// insertion and a full replay.
func TestBackdatedTradeReconciledByColdpath(t *testing.T) {
	ctx := context.Background()
	locks := keylock.New()
	events := persmemory.NewEventStore()
	snaps := persmemory.NewSnapshotStore()
	rules := contractrules.NewStatic(nil)
	producer := msgmemory.New()

	p := &hotpath.Processor{
		Validator:       validator.New(48 * time.Hour),
		Idempotency:     idemmemory.New(),
		ContractRules:   rules,
		Events:          events,
		Snapshots:       snaps,
		UPIs:            persmemory.NewUPIStore(),
		Producer:        producer,
		Locks:           locks,
		RetryBaseDelay:  time.Millisecond,
		RetryMaxRetries: 3,
	}

	open := domain.Trade{
		TradeID:       "t1",
		Account:       "acct1",
		Instrument:    "AAPL",
		Currency:      "USD",
		Type:          domain.TradeTypeNew,
		Quantity:      decimal.NewFromInt(100),
		Price:         decimal.NewFromInt(50),
		EffectiveDate: day(10),
		CorrelationID: "corr1",
	}
	require.NoError(t, p.Apply(ctx, open))

	key := domain.DerivePositionKey("acct1", "AAPL", "USD", domain.DirectionLong)

	backdated := open
	backdated.TradeID = "t0"
	backdated.Type = domain.TradeTypeIncrease
	backdated.Quantity = decimal.NewFromInt(20)
	backdated.EffectiveDate = day(5)
	backdated.PositionKey = key

	require.NoError(t, p.Apply(ctx, backdated))

	snap, err := snaps.Load(ctx, key)
	require.NoError(t, err)
	require.Equal(t, domain.ReconciliationProvisional, snap.ReconciliationStatus)
	require.Equal(t, "t0", snap.ProvisionalTradeID)

	replayer := &Replayer{
		ContractRules: rules,
		Events:        events,
		Snapshots:     snaps,
		Producer:      producer,
		Locks:         locks,
	}
	require.NoError(t, replayer.Replay(ctx, backdated))

	final, err := snaps.Load(ctx, key)
	require.NoError(t, err)
	require.Equal(t, domain.ReconciliationReconciled, final.ReconciliationStatus)
	require.True(t, final.Summary.TotalRemainingQty.Equal(decimal.NewFromInt(120)))

	allEvents, err := events.LoadByKey(ctx, key)
	require.NoError(t, err)
	var sawHistoricalCorrection bool
	for _, ev := range allEvents {
		if ev.Type == domain.EventHistoricalCorrection {
			sawHistoricalCorrection = true
		}
	}
	require.True(t, sawHistoricalCorrection)
}

// TestReplayIsDedupedOnRepeatDelivery ensures a second delivery of the same
// backdated trade id is a no-op (spec.md §4.7 step 3).
func TestReplayIsDedupedOnRepeatDelivery(t *testing.T) {
	ctx := context.Background()
	locks := keylock.New()
	events := persmemory.NewEventStore()
	snaps := persmemory.NewSnapshotStore()
	rules := contractrules.NewStatic(nil)
	producer := msgmemory.New()

	p := &hotpath.Processor{
		Validator:       validator.New(48 * time.Hour),
		Idempotency:     idemmemory.New(),
		ContractRules:   rules,
		Events:          events,
		Snapshots:       snaps,
		UPIs:            persmemory.NewUPIStore(),
		Producer:        producer,
		Locks:           locks,
		RetryBaseDelay:  time.Millisecond,
		RetryMaxRetries: 3,
	}

	open := domain.Trade{
		TradeID:       "t1",
		Account:       "acct1",
		Instrument:    "AAPL",
		Currency:      "USD",
		Type:          domain.TradeTypeNew,
		Quantity:      decimal.NewFromInt(100),
		Price:         decimal.NewFromInt(50),
		EffectiveDate: day(10),
		CorrelationID: "corr1",
	}
	require.NoError(t, p.Apply(ctx, open))

	key := domain.DerivePositionKey("acct1", "AAPL", "USD", domain.DirectionLong)
	backdated := open
	backdated.TradeID = "t0"
	backdated.Type = domain.TradeTypeIncrease
	backdated.Quantity = decimal.NewFromInt(20)
	backdated.EffectiveDate = day(5)
	backdated.PositionKey = key
	require.NoError(t, p.Apply(ctx, backdated))

	replayer := &Replayer{
		ContractRules: rules,
		Events:        events,
		Snapshots:     snaps,
		Producer:      producer,
		Locks:         locks,
	}
	require.NoError(t, replayer.Replay(ctx, backdated))
	require.NoError(t, replayer.Replay(ctx, backdated))

	allEvents, err := events.LoadByKey(ctx, key)
	require.NoError(t, err)
	count := 0
	for _, ev := range allEvents {
		if ev.Type != domain.EventProvisionalApplied && ev.Payload.TradeID == "t0" {
			count++
		}
	}
	require.Equal(t, 1, count)
}
