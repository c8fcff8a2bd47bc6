// Package messaging defines the transport-agnostic ports the engine
// publishes and consumes trade-lifecycle events through (spec.md §6
// "Outbound channels"), grounded on the teacher's broker.go Broker
// interface — there, one port abstracted exchange connectivity; here the
// same shape abstracts a message broker.
package messaging

import "context"

// Topic names the four logical publishers spec.md §6 requires. The engine
// must never depend on a concrete broker; only on these names plus the
// Producer/Consumer ports below.
type Topic string

const (
	TopicTradeApplied       Topic = "trade-applied"
	TopicBackdatedTrades    Topic = "backdated-trades"
	TopicProvisionalApplied Topic = "provisional-applied"
	TopicHistoricalCorrected Topic = "historical-corrected"
)

// Header is a single message header entry.
type Header struct {
	Key   string
	Value []byte
}

// Producer publishes a message keyed by position key (so partitioned
// transports preserve per-key ordering, spec.md §6).
type Producer interface {
	Publish(ctx context.Context, topic Topic, key string, value []byte, headers []Header) error
}

// Handler processes one consumed message. A non-nil error leaves the
// message for redelivery per the underlying transport's semantics.
type Handler func(ctx context.Context, key string, value []byte, headers []Header) error

// Consumer subscribes a handler to a topic.
type Consumer interface {
	Subscribe(ctx context.Context, topic Topic, handler Handler) error
}
