package hotpath

import (
	"context"
	"testing"
	"time"

	"github.com/chidi150c/posengine/internal/contractrules"
	"github.com/chidi150c/posengine/internal/domain"
	idemmemory "github.com/chidi150c/posengine/internal/idempotency/memory"
	"github.com/chidi150c/posengine/internal/keylock"
	msgmemory "github.com/chidi150c/posengine/internal/messaging/memory"
	persmemory "github.com/chidi150c/posengine/internal/persistence/memory"
	"github.com/chidi150c/posengine/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestProcessor() (*Processor, *persmemory.SnapshotStore) {
	snaps := persmemory.NewSnapshotStore()
	return &Processor{
		Validator:       validator.New(48 * time.Hour),
		Idempotency:     idemmemory.New(),
		ContractRules:   contractrules.NewStatic(nil),
		Events:          persmemory.NewEventStore(),
		Snapshots:       snaps,
		UPIs:            persmemory.NewUPIStore(),
		Producer:        msgmemory.New(),
		Locks:           keylock.New(),
		RetryBaseDelay:  time.Millisecond,
		RetryMaxRetries: 3,
	}, snaps
}

func baseTrade() domain.Trade {
	return domain.Trade{
		TradeID:       "t1",
		Account:       "acct1",
		Instrument:    "AAPL",
		Currency:      "USD",
		Type:          domain.TradeTypeNew,
		Quantity:      decimal.NewFromInt(100),
		Price:         decimal.NewFromInt(50),
		EffectiveDate: time.Now(),
		CorrelationID: "corr1",
	}
}

func TestApplyNewTradeOpensPosition(t *testing.T) {
	p, snaps := newTestProcessor()
	trade := baseTrade()

	err := p.Apply(context.Background(), trade)
	require.NoError(t, err)

	key := domain.DerivePositionKey("acct1", "AAPL", "USD", domain.DirectionLong)
	snap, err := snaps.Load(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, snap.Status)
	require.True(t, snap.Summary.TotalRemainingQty.Equal(decimal.NewFromInt(100)))
	require.NotEmpty(t, snap.UPI)
}

func TestApplyPriceResetUpdatesCurrentRefPrice(t *testing.T) {
	p, snaps := newTestProcessor()
	trade := baseTrade()
	require.NoError(t, p.Apply(context.Background(), trade))

	key := domain.DerivePositionKey("acct1", "AAPL", "USD", domain.DirectionLong)
	before, err := snaps.Load(context.Background(), key)
	require.NoError(t, err)

	require.NoError(t, p.ApplyPriceReset(context.Background(), key, decimal.NewFromInt(75), "corr2"))

	after, err := snaps.Load(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, before.LastVersion+1, after.LastVersion)
	require.True(t, after.Summary.TotalRemainingQty.Equal(before.Summary.TotalRemainingQty))
	require.True(t, after.Summary.Exposure.Equal(decimal.NewFromInt(100).Mul(decimal.NewFromInt(75))))
}

func TestApplyPriceResetRejectsNonExistentPosition(t *testing.T) {
	p, _ := newTestProcessor()
	key := domain.DerivePositionKey("nobody", "AAPL", "USD", domain.DirectionLong)
	err := p.ApplyPriceReset(context.Background(), key, decimal.NewFromInt(75), "corr1")
	require.Error(t, err)
}

func TestApplyIsIdempotentOnDuplicateTradeID(t *testing.T) {
	p, _ := newTestProcessor()
	trade := baseTrade()

	require.NoError(t, p.Apply(context.Background(), trade))
	require.NoError(t, p.Apply(context.Background(), trade))
}

func TestApplyIncreaseThenDecreaseStaysActive(t *testing.T) {
	p, snaps := newTestProcessor()
	trade := baseTrade()
	require.NoError(t, p.Apply(context.Background(), trade))

	increase := trade
	increase.TradeID = "t2"
	increase.Type = domain.TradeTypeIncrease
	increase.Quantity = decimal.NewFromInt(50)
	require.NoError(t, p.Apply(context.Background(), increase))

	decrease := trade
	decrease.TradeID = "t3"
	decrease.Type = domain.TradeTypeDecrease
	decrease.Quantity = decimal.NewFromInt(30)
	decrease.Price = decimal.NewFromInt(60)
	require.NoError(t, p.Apply(context.Background(), decrease))

	key := domain.DerivePositionKey("acct1", "AAPL", "USD", domain.DirectionLong)
	snap, err := snaps.Load(context.Background(), key)
	require.NoError(t, err)
	require.True(t, snap.Summary.TotalRemainingQty.Equal(decimal.NewFromInt(120)))
}

func TestApplyDecreaseToZeroTerminates(t *testing.T) {
	p, snaps := newTestProcessor()
	trade := baseTrade()
	require.NoError(t, p.Apply(context.Background(), trade))

	decrease := trade
	decrease.TradeID = "t2"
	decrease.Type = domain.TradeTypeDecrease
	decrease.Quantity = decimal.NewFromInt(100)
	require.NoError(t, p.Apply(context.Background(), decrease))

	key := domain.DerivePositionKey("acct1", "AAPL", "USD", domain.DirectionLong)
	snap, err := snaps.Load(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, domain.StatusTerminated, snap.Status)
}

func TestApplyDirectionChangeOpensOppositeKey(t *testing.T) {
	p, snaps := newTestProcessor()
	trade := baseTrade()
	require.NoError(t, p.Apply(context.Background(), trade))

	flip := trade
	flip.TradeID = "t2"
	flip.Type = domain.TradeTypeDecrease
	flip.Quantity = decimal.NewFromInt(150)
	require.NoError(t, p.Apply(context.Background(), flip))

	longKey := domain.DerivePositionKey("acct1", "AAPL", "USD", domain.DirectionLong)
	longSnap, err := snaps.Load(context.Background(), longKey)
	require.NoError(t, err)
	require.Equal(t, domain.StatusTerminated, longSnap.Status)

	shortKey := domain.DerivePositionKey("acct1", "AAPL", "USD", domain.DirectionShort)
	shortSnap, err := snaps.Load(context.Background(), shortKey)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, shortSnap.Status)
	require.True(t, shortSnap.Summary.TotalRemainingQty.Equal(decimal.NewFromInt(50)))
}

func TestApplyRejectsInvalidTrade(t *testing.T) {
	p, _ := newTestProcessor()
	err := p.Apply(context.Background(), domain.Trade{})
	require.Error(t, err)
}
