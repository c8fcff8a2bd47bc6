// Package memory provides in-process EventStore/SnapshotStore/UPIStore
// implementations for tests and the in-memory engine wiring, modeled on
// the teacher's broker_paper.go dependency-free stand-in pattern.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chidi150c/posengine/internal/domain"
	"github.com/chidi150c/posengine/internal/persistence"
)

// EventStore is a mutex-guarded in-memory EventStore.
type EventStore struct {
	mu     sync.Mutex
	events map[domain.PositionKey][]domain.Event
}

func NewEventStore() *EventStore {
	return &EventStore{events: make(map[domain.PositionKey][]domain.Event)}
}

func (s *EventStore) Append(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events[ev.PositionKey] {
		if existing.Version == ev.Version {
			return fmt.Errorf("persistence/memory: version %d already exists for %s", ev.Version, ev.PositionKey)
		}
	}
	s.events[ev.PositionKey] = append(s.events[ev.PositionKey], ev)
	return nil
}

func (s *EventStore) LoadByKey(_ context.Context, key domain.PositionKey) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.Event(nil), s.events[key]...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EffectiveDate.Equal(out[j].EffectiveDate) {
			return out[i].EffectiveDate.Before(out[j].EffectiveDate)
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (s *EventStore) LatestVersion(_ context.Context, key domain.PositionKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max int64
	for _, ev := range s.events[key] {
		if ev.Version > max {
			max = ev.Version
		}
	}
	return max, nil
}

// SnapshotStore is a mutex-guarded in-memory SnapshotStore with the same
// optimistic-locking contract as the real implementation.
type SnapshotStore struct {
	mu   sync.Mutex
	rows map[domain.PositionKey]*domain.Snapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{rows: make(map[domain.PositionKey]*domain.Snapshot)}
}

func (s *SnapshotStore) Load(_ context.Context, key domain.PositionKey) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[key]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *SnapshotStore) Save(_ context.Context, snap *domain.Snapshot, expectedOptLockVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rows[snap.PositionKey]
	current := int64(0)
	if ok {
		current = existing.OptLockVersion
	}
	if current != expectedOptLockVersion {
		return persistence.ErrVersionConflict
	}
	cp := *snap
	cp.OptLockVersion = expectedOptLockVersion + 1
	s.rows[snap.PositionKey] = &cp
	return nil
}

// UPIStore is a mutex-guarded in-memory UPIStore.
type UPIStore struct {
	mu   sync.Mutex
	gens map[domain.PositionKey][]domain.UPIRecord
}

func NewUPIStore() *UPIStore {
	return &UPIStore{gens: make(map[domain.PositionKey][]domain.UPIRecord)}
}

func (s *UPIStore) AppendGeneration(_ context.Context, rec domain.UPIRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[rec.PositionKey] = append(s.gens[rec.PositionKey], rec)
	return nil
}

func (s *UPIStore) TerminateCurrent(_ context.Context, key domain.PositionKey, terminatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.gens[key]
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].TerminatedAt == nil {
			t := terminatedAt
			recs[i].TerminatedAt = &t
			return nil
		}
	}
	return fmt.Errorf("persistence/memory: no active UPI generation for %s", key)
}

func (s *UPIStore) History(_ context.Context, key domain.PositionKey) ([]domain.UPIRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.UPIRecord(nil), s.gens[key]...), nil
}
