package memory

import (
	"context"
	"testing"
	"time"

	"github.com/chidi150c/posengine/internal/domain"
	"github.com/chidi150c/posengine/internal/persistence"
	"github.com/stretchr/testify/require"
)

func TestEventStoreAppendAndLoadOrdersByEffectiveDateThenVersion(t *testing.T) {
	s := NewEventStore()
	ctx := context.Background()
	key := domain.PositionKey("pk_1")

	require.NoError(t, s.Append(ctx, domain.Event{PositionKey: key, Version: 2, EffectiveDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, s.Append(ctx, domain.Event{PositionKey: key, Version: 1, EffectiveDate: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}))

	events, err := s.LoadByKey(ctx, key)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, int64(2), events[0].Version)
	require.Equal(t, int64(1), events[1].Version)

	latest, err := s.LatestVersion(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(2), latest)
}

func TestEventStoreRejectsDuplicateVersion(t *testing.T) {
	s := NewEventStore()
	ctx := context.Background()
	key := domain.PositionKey("pk_1")
	require.NoError(t, s.Append(ctx, domain.Event{PositionKey: key, Version: 1}))
	require.Error(t, s.Append(ctx, domain.Event{PositionKey: key, Version: 1}))
}

func TestSnapshotStoreOptimisticLocking(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()
	key := domain.PositionKey("pk_1")

	_, err := s.Load(ctx, key)
	require.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, s.Save(ctx, &domain.Snapshot{PositionKey: key}, 0))

	loaded, err := s.Load(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(1), loaded.OptLockVersion)

	err = s.Save(ctx, &domain.Snapshot{PositionKey: key}, 0)
	require.ErrorIs(t, err, persistence.ErrVersionConflict)

	require.NoError(t, s.Save(ctx, loaded, 1))
}

func TestUPIStoreAppendAndTerminate(t *testing.T) {
	s := NewUPIStore()
	ctx := context.Background()
	key := domain.PositionKey("pk_1")

	require.NoError(t, s.AppendGeneration(ctx, domain.UPIRecord{PositionKey: key, Generation: 1, UPI: "upi-1"}))
	require.NoError(t, s.TerminateCurrent(ctx, key, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	history, err := s.History(ctx, key)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].TerminatedAt)
}
