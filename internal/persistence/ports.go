// Package persistence defines the storage ports the engine depends on
// (spec.md §6 "Persisted schemas"): event_store, snapshot_store, and
// upi_history. idempotency_store has its own port in internal/idempotency.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/chidi150c/posengine/internal/domain"
)

// ErrVersionConflict is returned by SnapshotStore.Save when optLockVersion
// does not match the currently stored version (spec.md §7
// version_conflict).
var ErrVersionConflict = errors.New("persistence: snapshot optimistic-lock version conflict")

// ErrNotFound is returned when a lookup finds no row.
var ErrNotFound = errors.New("persistence: not found")

// EventStore is the append-only event log port. Rows are single-writer,
// keyed by (position_key, event_version); the primary key itself provides
// natural serialization (spec.md §5 "Shared-resource policy").
type EventStore interface {
	// Append inserts ev. Appending a version that already exists for
	// PositionKey is a programming error in the caller (the caller must
	// allocate the next version itself) and returns an error.
	Append(ctx context.Context, ev domain.Event) error
	// LoadByKey returns every event for key ordered by
	// (EffectiveDate, Version) ascending, for coldpath replay (spec.md §4.7).
	LoadByKey(ctx context.Context, key domain.PositionKey) ([]domain.Event, error)
	// LatestVersion returns the highest Version stored for key, or 0 if none.
	LatestVersion(ctx context.Context, key domain.PositionKey) (int64, error)
}

// SnapshotStore is the per-position current-state port, optimistically
// locked on OptLockVersion (spec.md §5, §6).
type SnapshotStore interface {
	// Load returns the snapshot for key, or ErrNotFound if none exists.
	Load(ctx context.Context, key domain.PositionKey) (*domain.Snapshot, error)
	// Save writes snap, succeeding only if the stored OptLockVersion still
	// equals expectedOptLockVersion; on success the stored version becomes
	// expectedOptLockVersion + 1. Returns ErrVersionConflict on mismatch, and
	// in that case the caller must reload and retry (spec.md §5).
	Save(ctx context.Context, snap *domain.Snapshot, expectedOptLockVersion int64) error
}

// UPIStore is the upi_history port (spec.md §6).
type UPIStore interface {
	// AppendGeneration inserts a new UPI generation for key.
	AppendGeneration(ctx context.Context, rec domain.UPIRecord) error
	// TerminateCurrent marks the current (TerminatedAt == nil) generation
	// for key terminated at the given time.
	TerminateCurrent(ctx context.Context, key domain.PositionKey, terminatedAt time.Time) error
	// History returns every generation recorded for key, oldest first.
	History(ctx context.Context, key domain.PositionKey) ([]domain.UPIRecord, error)
}
