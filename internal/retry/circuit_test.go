package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Hour)
	boom := errors.New("boom")

	require.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	require.ErrorIs(t, cb.Call(func() error { return boom }), boom)

	err := cb.Call(func() error { t.Fatal("op must not run while open"); return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerHalfOpensAfterDuration(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Millisecond)
	boom := errors.New("boom")

	require.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	require.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)

	time.Sleep(5 * time.Millisecond)

	ran := false
	require.NoError(t, cb.Call(func() error { ran = true; return nil }))
	require.True(t, ran)
}

func TestCircuitBreakerClosesOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Millisecond)
	boom := errors.New("boom")

	require.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	require.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	require.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cb.Call(func() error { return nil }))

	require.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	require.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	err := cb.Call(func() error { t.Fatal("op must not run while open"); return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
}
