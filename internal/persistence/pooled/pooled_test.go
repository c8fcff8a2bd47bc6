package pooled

import (
	"context"
	"testing"
	"time"

	"github.com/chidi150c/posengine/internal/domain"
	persmemory "github.com/chidi150c/posengine/internal/persistence/memory"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStoreSavePassesThroughToInner(t *testing.T) {
	inner := persmemory.NewSnapshotStore()
	store := NewSnapshotStore(inner, time.Hour)

	snap := &domain.Snapshot{PositionKey: "k1", LastVersion: 1, Status: domain.StatusActive}
	require.NoError(t, store.Save(context.Background(), snap, 0))

	loaded, err := store.Load(context.Background(), "k1")
	require.NoError(t, err)
	require.Equal(t, int64(1), loaded.LastVersion)
}

func TestEventStorePassesThroughToInner(t *testing.T) {
	inner := persmemory.NewEventStore()
	store := NewEventStore(inner, time.Hour)

	ev := domain.Event{PositionKey: "k1", Version: 1, Type: domain.EventNewTrade}
	require.NoError(t, store.Append(context.Background(), ev))

	events, err := store.LoadByKey(context.Background(), "k1")
	require.NoError(t, err)
	require.Len(t, events, 1)
}
