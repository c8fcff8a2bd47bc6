package lotengine

import (
	"testing"
	"time"

	"github.com/chidi150c/posengine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func dateOf(day int) time.Time {
	return time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC)
}

func TestAddLot(t *testing.T) {
	state := domain.NewEmptyPositionState("pk1")
	trade := domain.Trade{
		TradeID: "t1", Quantity: d("1000"), Price: d("50.00"), EffectiveDate: dateOf(1),
	}
	result := AddLot(state, trade)
	require.Len(t, state.Lots, 1)
	require.True(t, state.Lots[0].RemainingQty.Equal(d("1000")))
	require.True(t, result.TotalQty.Equal(d("1000")))
	require.True(t, result.TotalRealizedPnL.IsZero())
}

// S1 from spec.md §8: create, increase, partial decrease, full close.
func TestFIFOLifecycleScenarioS1(t *testing.T) {
	state := domain.NewEmptyPositionState("pk1")
	AddLot(state, domain.Trade{Quantity: d("1000"), Price: d("50.00"), EffectiveDate: dateOf(1)})
	AddLot(state, domain.Trade{Quantity: d("500"), Price: d("55.00"), EffectiveDate: dateOf(2)})

	r3, err := ReduceLots(state, MethodFIFO, d("300"), d("60.00"), "c1")
	require.NoError(t, err)
	require.True(t, r3.TotalRealizedPnL.Equal(d("3000")))

	r4, err := ReduceLots(state, MethodFIFO, d("1200"), d("65.00"), "c1")
	require.NoError(t, err)
	// 700 from lot1 @ 15 = 10500, 500 from lot2 @ 10 = 5000 => 15500
	require.True(t, r4.TotalRealizedPnL.Equal(d("15500")), "got %s", r4.TotalRealizedPnL)
	require.True(t, state.TotalRemainingQty().IsZero())
}

// S2 from spec.md §8: LIFO reduce.
func TestLIFOReduceScenarioS2(t *testing.T) {
	state := domain.NewEmptyPositionState("pk1")
	AddLot(state, domain.Trade{Quantity: d("100"), Price: d("50"), EffectiveDate: dateOf(1)})
	AddLot(state, domain.Trade{Quantity: d("200"), Price: d("55"), EffectiveDate: dateOf(2)})
	AddLot(state, domain.Trade{Quantity: d("150"), Price: d("60"), EffectiveDate: dateOf(3)})

	r, err := ReduceLots(state, MethodLIFO, d("100"), d("55"), "c1")
	require.NoError(t, err)
	require.True(t, r.TotalRealizedPnL.Equal(d("-500")), "got %s", r.TotalRealizedPnL)
	require.True(t, state.Lots[2].RemainingQty.Equal(d("50")))
	require.True(t, state.Lots[0].RemainingQty.Equal(d("100")))
	require.True(t, state.Lots[1].RemainingQty.Equal(d("200")))
}

// S3 from spec.md §8: HIFO reduce.
func TestHIFOReduceScenarioS3(t *testing.T) {
	state := domain.NewEmptyPositionState("pk1")
	AddLot(state, domain.Trade{Quantity: d("100"), Price: d("50"), EffectiveDate: dateOf(1)})
	AddLot(state, domain.Trade{Quantity: d("200"), Price: d("60"), EffectiveDate: dateOf(2)})
	AddLot(state, domain.Trade{Quantity: d("150"), Price: d("55"), EffectiveDate: dateOf(3)})

	r, err := ReduceLots(state, MethodHIFO, d("100"), d("55"), "c1")
	require.NoError(t, err)
	require.True(t, r.TotalRealizedPnL.Equal(d("-500")), "got %s", r.TotalRealizedPnL)
	require.True(t, state.Lots[1].RemainingQty.Equal(d("100")), "expected 200@60 lot consumed to 100")
}

// S4 from spec.md §8: insufficient quantity leaves state untouched.
func TestInsufficientQuantityScenarioS4(t *testing.T) {
	state := domain.NewEmptyPositionState("pk1")
	AddLot(state, domain.Trade{Quantity: d("100"), Price: d("50"), EffectiveDate: dateOf(1)})

	_, err := ReduceLots(state, MethodFIFO, d("200"), d("55"), "c1")
	require.Error(t, err)
	var ee *domain.EngineError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, domain.ErrInsufficientQuantity, ee.Kind)
	require.True(t, state.Lots[0].RemainingQty.Equal(d("100")), "no partial mutation on failure")
}

// Property 6 (Conservation): sum of allocation qty equals |trade qty|, and
// sum of lot.remaining before minus after equals the trade quantity.
func TestConservationProperty(t *testing.T) {
	state := domain.NewEmptyPositionState("pk1")
	AddLot(state, domain.Trade{Quantity: d("700"), Price: d("10"), EffectiveDate: dateOf(1)})
	AddLot(state, domain.Trade{Quantity: d("300"), Price: d("12"), EffectiveDate: dateOf(2)})

	before := state.TotalRemainingQty()
	r, err := ReduceLots(state, MethodFIFO, d("450"), d("11"), "c1")
	require.NoError(t, err)
	after := state.TotalRemainingQty()

	sumAlloc := decimal.Zero
	for _, a := range r.Allocations {
		sumAlloc = sumAlloc.Add(a.Qty)
	}
	require.True(t, sumAlloc.Equal(d("450")))
	require.True(t, before.Sub(after).Equal(d("450")))
}

func TestResetPricesDoesNotTouchOriginal(t *testing.T) {
	state := domain.NewEmptyPositionState("pk1")
	AddLot(state, domain.Trade{Quantity: d("100"), Price: d("50"), EffectiveDate: dateOf(1)})
	ResetPrices(state, d("61.5"))
	require.True(t, state.Lots[0].CurrentRefPrice.Equal(d("61.5")))
	require.True(t, state.Lots[0].OriginalPrice.Equal(d("50")))
}
