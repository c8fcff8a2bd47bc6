// Package kafka implements messaging.Producer and messaging.Consumer on
// top of segmentio/kafka-go, grounded on the pack's Kafka usage
// (go-coffee, trogers1052-stock-alert-system) as the model for a
// production broker binding behind the engine's transport-agnostic port.
package kafka

import (
	"context"

	"github.com/chidi150c/posengine/internal/messaging"
	kafkago "github.com/segmentio/kafka-go"
)

// Producer publishes to Kafka topics, one *kafkago.Writer per topic.
type Producer struct {
	brokers []string
	writers map[messaging.Topic]*kafkago.Writer
}

// NewProducer builds a Producer that lazily creates one writer per topic
// actually published to.
func NewProducer(brokers []string) *Producer {
	return &Producer{brokers: brokers, writers: make(map[messaging.Topic]*kafkago.Writer)}
}

func (p *Producer) writerFor(topic messaging.Topic) *kafkago.Writer {
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(p.brokers...),
		Topic:        string(topic),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	p.writers[topic] = w
	return w
}

func (p *Producer) Publish(ctx context.Context, topic messaging.Topic, key string, value []byte, headers []messaging.Header) error {
	kHeaders := make([]kafkago.Header, 0, len(headers))
	for _, h := range headers {
		kHeaders = append(kHeaders, kafkago.Header{Key: h.Key, Value: h.Value})
	}
	return p.writerFor(topic).WriteMessages(ctx, kafkago.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: kHeaders,
	})
}

// Close closes every writer opened by this Producer.
func (p *Producer) Close() error {
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Consumer subscribes handlers to Kafka topics, one reader goroutine per
// topic, using the position key (message key) as the partitioning key so
// per-key ordering survives partitioning (spec.md §6).
type Consumer struct {
	brokers []string
	groupID string
}

// NewConsumer builds a Consumer reading as part of consumer group groupID.
func NewConsumer(brokers []string, groupID string) *Consumer {
	return &Consumer{brokers: brokers, groupID: groupID}
}

func (c *Consumer) Subscribe(ctx context.Context, topic messaging.Topic, handler messaging.Handler) error {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: c.brokers,
		GroupID: c.groupID,
		Topic:   string(topic),
	})
	go func() {
		defer reader.Close()
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				return
			}
			headers := make([]messaging.Header, 0, len(msg.Headers))
			for _, h := range msg.Headers {
				headers = append(headers, messaging.Header{Key: h.Key, Value: h.Value})
			}
			_ = handler(ctx, string(msg.Key), msg.Value, headers)
		}
	}()
	return nil
}
