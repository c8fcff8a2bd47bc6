// Package memory provides an in-process idempotency store for tests and
// the in-memory engine wiring, grounded on the teacher's broker_paper.go
// pattern of a dependency-free stub satisfying a production port.
package memory

import (
	"context"
	"sync"

	"github.com/chidi150c/posengine/internal/domain"
)

type record struct {
	positionKey  domain.PositionKey
	eventVersion int64
}

// Store is a mutex-guarded map implementation of idempotency.Store.
type Store struct {
	mu      sync.Mutex
	records map[string]record
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]record)}
}

func (s *Store) IsProcessed(_ context.Context, tradeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[tradeID]
	return ok, nil
}

func (s *Store) Mark(_ context.Context, tradeID string, positionKey domain.PositionKey, eventVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[tradeID]; exists {
		return true, nil
	}
	s.records[tradeID] = record{positionKey: positionKey, eventVersion: eventVersion}
	return false, nil
}
