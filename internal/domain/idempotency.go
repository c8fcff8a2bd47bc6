package domain

import "time"

// IdempotencyStatus reflects the outcome of the processing attempt the
// idempotency record marks (spec.md §3).
type IdempotencyStatus string

const (
	IdempotencyProcessed IdempotencyStatus = "PROCESSED"
	IdempotencyFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyRecord is the one-shot marker keyed on trade id
// (spec.md §3, §4.2).
type IdempotencyRecord struct {
	TradeID     string
	PositionKey PositionKey
	EventVersion int64
	ProcessedAt time.Time
	Status      IdempotencyStatus
}

// UPIRecord is one generation of a position's unique position identifier
// (spec.md §3). A position has exactly one active UPI; transitions append
// a new generation.
type UPIRecord struct {
	PositionKey  PositionKey
	Generation   int
	UPI          string
	CreatedAt    time.Time
	TerminatedAt *time.Time
}
