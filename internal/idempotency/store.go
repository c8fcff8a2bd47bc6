// Package idempotency implements C2: a one-shot marker keyed on trade id
// (spec.md §4.2). The in-memory check is advisory before work; the
// uniqueness constraint enforced by Mark is authoritative during commit.
package idempotency

import (
	"context"

	"github.com/chidi150c/posengine/internal/domain"
)

// Store is the idempotency port. Implementations must make Mark an
// insert-only, unique-on-trade-id operation: a duplicate insert is a
// successful no-op, never an error the caller must special-case (spec.md
// §4.2 "duplicate insertion is a successful idempotent no-op").
type Store interface {
	// IsProcessed is the advisory pre-check.
	IsProcessed(ctx context.Context, tradeID string) (bool, error)
	// Mark records the trade as processed for (positionKey, eventVersion).
	// Returns (alreadyProcessed=true, nil) if a record for tradeID already
	// existed rather than an error — the hotpath "must treat a violation
	// on commit as already processed and silently succeed" (spec.md §4.2).
	Mark(ctx context.Context, tradeID string, positionKey domain.PositionKey, eventVersion int64) (alreadyProcessed bool, err error)
}
