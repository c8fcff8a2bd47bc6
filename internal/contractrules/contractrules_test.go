package contractrules

import (
	"context"
	"testing"

	"github.com/chidi150c/posengine/internal/lotengine"
	"github.com/stretchr/testify/require"
)

func TestStaticDefaultsToFIFO(t *testing.T) {
	p := NewStatic(nil)
	m, err := p.MethodFor(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, lotengine.MethodFIFO, m)

	m, err = p.MethodFor(context.Background(), "unknown-contract")
	require.NoError(t, err)
	require.Equal(t, lotengine.MethodFIFO, m)
}

func TestStaticResolvesConfiguredMethod(t *testing.T) {
	p := NewStatic(map[string]lotengine.Method{"C1": lotengine.MethodHIFO})
	m, err := p.MethodFor(context.Background(), "C1")
	require.NoError(t, err)
	require.Equal(t, lotengine.MethodHIFO, m)
}
