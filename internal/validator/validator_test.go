package validator

import (
	"testing"
	"time"

	"github.com/chidi150c/posengine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func validTrade() domain.Trade {
	return domain.Trade{
		TradeID:       "t1",
		PositionKey:   "pk_abc123",
		Type:          domain.TradeTypeNew,
		Quantity:      decimal.NewFromInt(100),
		Price:         decimal.NewFromInt(50),
		EffectiveDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidTradeAccepted(t *testing.T) {
	v := New(48 * time.Hour)
	r := v.Validate(validTrade(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, r.Accepted)
	require.Empty(t, r.Reasons)
}

func TestMissingFieldsRejected(t *testing.T) {
	v := New(48 * time.Hour)
	trade := domain.Trade{}
	r := v.Validate(trade, time.Now())
	require.False(t, r.Accepted)
	require.Contains(t, r.Reasons, "missing trade id")
	require.Contains(t, r.Reasons, "missing position key")
	require.Contains(t, r.Reasons, "missing trade type")
	require.Contains(t, r.Reasons, "missing effective date")
}

func TestNonPositiveQuantityOrPriceRejected(t *testing.T) {
	v := New(48 * time.Hour)
	trade := validTrade()
	trade.Quantity = decimal.Zero
	trade.Price = decimal.NewFromInt(-1)
	r := v.Validate(trade, time.Now())
	require.False(t, r.Accepted)
	require.Contains(t, r.Reasons, "quantity must be greater than zero")
	require.Contains(t, r.Reasons, "price must be greater than zero")
}

func TestFutureHorizonRejected(t *testing.T) {
	v := New(24 * time.Hour)
	trade := validTrade()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trade.EffectiveDate = now.Add(72 * time.Hour)
	r := v.Validate(trade, now)
	require.False(t, r.Accepted)
	require.Contains(t, r.Reasons, "effective date is further in the future than the accepted horizon")
}

func TestUnacceptedTradeTypeRejected(t *testing.T) {
	v := New(48 * time.Hour)
	trade := validTrade()
	trade.Type = domain.TradeType("HISTORICAL_CORRECTION")
	r := v.Validate(trade, time.Now())
	require.False(t, r.Accepted)
	require.Contains(t, r.Reasons, "trade type must be one of NEW_TRADE, INCREASE, DECREASE")
}

func TestToEngineErrorNilWhenAccepted(t *testing.T) {
	v := New(48 * time.Hour)
	r := v.Validate(validTrade(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, r.ToEngineError("corr1"))
}

func TestToEngineErrorWrapsReasons(t *testing.T) {
	v := New(48 * time.Hour)
	r := v.Validate(domain.Trade{}, time.Now())
	err := r.ToEngineError("corr1")
	require.Error(t, err)
	var ee *domain.EngineError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, domain.ErrValidationFailed, ee.Kind)
	require.Equal(t, "corr1", ee.CorrelationID)
}
