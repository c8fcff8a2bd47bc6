package statemachine

import (
	"testing"

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

func TestNewTradeOnNonExistentOpensLong(t *testing.T) {
	o, err := Decide(domain.StateNonExistent, domain.TradeTypeNew, decimal.Zero, d("1000"), "")
	require.NoError(t, err)
	require.Equal(t, domain.StateActiveLong, o.NextState)
	require.True(t, o.NewUPIGeneration)
}

func TestNewTradeOnNonExistentCanOpenShort(t *testing.T) {
	o, err := Decide(domain.StateNonExistent, domain.TradeTypeNew, decimal.Zero, d("1000"), domain.DirectionShort)
	require.NoError(t, err)
	require.Equal(t, domain.StateActiveShort, o.NextState)
}

func TestIncreaseOrDecreaseOnNonExistentIsInvalid(t *testing.T) {
	_, err := Decide(domain.StateNonExistent, domain.TradeTypeIncrease, decimal.Zero, d("10"), "")
	require.Error(t, err)
	var ee *domain.EngineError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, domain.ErrStateMachineInvalid, ee.Kind)
}

func TestIncreaseOnActiveLongStaysLong(t *testing.T) {
	o, err := Decide(domain.StateActiveLong, domain.TradeTypeIncrease, d("1000"), d("500"), "")
	require.NoError(t, err)
	require.Equal(t, domain.StateActiveLong, o.NextState)
	require.Nil(t, o.DirectionChange)
}

func TestDecreasePartialStaysLong(t *testing.T) {
	o, err := Decide(domain.StateActiveLong, domain.TradeTypeDecrease, d("1500"), d("300"), "")
	require.NoError(t, err)
	require.Equal(t, domain.StateActiveLong, o.NextState)
}

func TestDecreaseToZeroTerminates(t *testing.T) {
	o, err := Decide(domain.StateActiveLong, domain.TradeTypeDecrease, d("100"), d("100"), "")
	require.NoError(t, err)
	require.Equal(t, domain.StateTerminated, o.NextState)
	require.True(t, o.TerminateUPI)
	require.Nil(t, o.DirectionChange)
}

// S5 from spec.md §8: direction change long -> short.
func TestDirectionChangeLongToShortScenarioS5(t *testing.T) {
	o, err := Decide(domain.StateActiveLong, domain.TradeTypeDecrease, d("100"), d("150"), "")
	require.NoError(t, err)
	require.Equal(t, domain.StateTerminated, o.NextState)
	require.NotNil(t, o.DirectionChange)
	require.True(t, o.DirectionChange.CloseQty.Equal(d("100")))
	require.True(t, o.DirectionChange.OpenQty.Equal(d("50")))
	require.Equal(t, domain.DirectionShort, o.DirectionChange.OpenDirection)
}

func TestDirectionChangeShortToLong(t *testing.T) {
	o, err := Decide(domain.StateActiveShort, domain.TradeTypeDecrease, d("-100"), d("150"), "")
	require.NoError(t, err)
	require.NotNil(t, o.DirectionChange)
	require.True(t, o.DirectionChange.CloseQty.Equal(d("100")))
	require.True(t, o.DirectionChange.OpenQty.Equal(d("50")))
	require.Equal(t, domain.DirectionLong, o.DirectionChange.OpenDirection)
}

func TestTerminatedRejectsIncreaseDecrease(t *testing.T) {
	_, err := Decide(domain.StateTerminated, domain.TradeTypeDecrease, decimal.Zero, d("10"), "")
	require.Error(t, err)
}

func TestTerminatedAcceptsNewTradeAsReopen(t *testing.T) {
	o, err := Decide(domain.StateTerminated, domain.TradeTypeNew, decimal.Zero, d("2000"), "")
	require.NoError(t, err)
	require.Equal(t, domain.StateActiveLong, o.NextState)
	require.True(t, o.NewUPIGeneration)
}
