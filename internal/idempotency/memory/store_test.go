package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkThenIsProcessed(t *testing.T) {
	s := New()
	ctx := context.Background()

	processed, err := s.IsProcessed(ctx, "t1")
	require.NoError(t, err)
	require.False(t, processed)

	already, err := s.Mark(ctx, "t1", "pk_1", 3)
	require.NoError(t, err)
	require.False(t, already)

	processed, err = s.IsProcessed(ctx, "t1")
	require.NoError(t, err)
	require.True(t, processed)
}

func TestMarkIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Mark(ctx, "t1", "pk_1", 3)
	require.NoError(t, err)

	already, err := s.Mark(ctx, "t1", "pk_1", 7)
	require.NoError(t, err)
	require.True(t, already)
}
