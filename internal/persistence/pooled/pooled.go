// Package pooled wraps the event/snapshot store ports with a per-call
// acquisition timeout, expressing the two distinct connection-pool
// policies spec.md §5 asks for: the hotpath pool rejects fast (a short
// timeout turns pool exhaustion into an immediate error) while the
// coldpath pool queues (a long timeout lets a replay wait behind other
// coldpath work rather than fail it). pgxpool itself only bounds pool
// size; this package is what turns "small pool + short timeout" and
// "large pool + long timeout" into actual reject-vs-queue behavior at the
// call site, the same way the teacher wraps its broker client calls with
// a deadline in broker_bridge.go.
package pooled

import (
	"context"
	"time"

	"github.com/chidi150c/posengine/internal/domain"
	"github.com/chidi150c/posengine/internal/persistence"
)

// EventStore wraps a persistence.EventStore, bounding every call to
// acquireTimeout.
type EventStore struct {
	inner          persistence.EventStore
	acquireTimeout time.Duration
}

// NewEventStore wraps inner so every call is bounded by acquireTimeout.
func NewEventStore(inner persistence.EventStore, acquireTimeout time.Duration) *EventStore {
	return &EventStore{inner: inner, acquireTimeout: acquireTimeout}
}

func (s *EventStore) Append(ctx context.Context, ev domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	return s.inner.Append(ctx, ev)
}

func (s *EventStore) LoadByKey(ctx context.Context, key domain.PositionKey) ([]domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	return s.inner.LoadByKey(ctx, key)
}

func (s *EventStore) LatestVersion(ctx context.Context, key domain.PositionKey) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	return s.inner.LatestVersion(ctx, key)
}

// SnapshotStore wraps a persistence.SnapshotStore, bounding every call to
// acquireTimeout.
type SnapshotStore struct {
	inner          persistence.SnapshotStore
	acquireTimeout time.Duration
}

// NewSnapshotStore wraps inner so every call is bounded by acquireTimeout.
func NewSnapshotStore(inner persistence.SnapshotStore, acquireTimeout time.Duration) *SnapshotStore {
	return &SnapshotStore{inner: inner, acquireTimeout: acquireTimeout}
}

func (s *SnapshotStore) Load(ctx context.Context, key domain.PositionKey) (*domain.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	return s.inner.Load(ctx, key)
}

func (s *SnapshotStore) Save(ctx context.Context, snap *domain.Snapshot, expectedOptLockVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	return s.inner.Save(ctx, snap, expectedOptLockVersion)
}
