// Package keylock generalizes the teacher's single Trader.mu (trader.go) —
// one mutex guarding one position — into a registry of per-position-key
// mutexes. The hotpath and coldpath share one registry so that, within a
// position key, no two trades, nor a trade and a replay, ever run
// concurrently (spec.md §5).
package keylock

import (
	"sync"

	"github.com/chidi150c/posengine/internal/domain"
)

// Registry hands out one mutex per position key, created lazily and
// reference-counted so idle keys don't accumulate forever.
type Registry struct {
	mu    sync.Mutex
	locks map[domain.PositionKey]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{locks: make(map[domain.PositionKey]*entry)}
}

// Lock acquires the critical section for key, creating it on first use.
// The returned func releases it and must be called exactly once.
func (r *Registry) Lock(key domain.PositionKey) func() {
	r.mu.Lock()
	e, ok := r.locks[key]
	if !ok {
		e = &entry{}
		r.locks[key] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		r.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(r.locks, key)
		}
		r.mu.Unlock()
	}
}
