// Package memory is an in-process Producer/Consumer pair for tests and
// the in-memory engine wiring, modeled on the teacher's broker_paper.go
// dependency-free stand-in for a real broker.
package memory

import (
	"context"
	"sync"

	"github.com/chidi150c/posengine/internal/messaging"
)

// Broker is a synchronous, in-process implementation of both
// messaging.Producer and messaging.Consumer: Publish invokes every
// handler subscribed to the topic inline, on the publishing goroutine.
type Broker struct {
	mu       sync.RWMutex
	handlers map[messaging.Topic][]messaging.Handler
	Published []PublishedMessage
}

// PublishedMessage records a call to Publish, for test assertions.
type PublishedMessage struct {
	Topic   messaging.Topic
	Key     string
	Value   []byte
	Headers []messaging.Header
}

// New returns an empty Broker.
func New() *Broker {
	return &Broker{handlers: make(map[messaging.Topic][]messaging.Handler)}
}

func (b *Broker) Subscribe(_ context.Context, topic messaging.Topic, handler messaging.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

func (b *Broker) Publish(ctx context.Context, topic messaging.Topic, key string, value []byte, headers []messaging.Header) error {
	b.mu.Lock()
	b.Published = append(b.Published, PublishedMessage{Topic: topic, Key: key, Value: value, Headers: headers})
	handlers := append([]messaging.Handler(nil), b.handlers[topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, key, value, headers); err != nil {
			return err
		}
	}
	return nil
}
