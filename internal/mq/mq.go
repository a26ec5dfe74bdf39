package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tripdesk/apiserver/config"
)

// Attribute keys understood by every backend.
const (
	// AttrKey orders messages sharing the same key where the broker supports it.
	AttrKey = "key"
	// AttrEventType names the event carried by the message.
	AttrEventType = "event_type"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open builds the backend selected by cfg.MQ.Backend.
func Open(ctx context.Context, cfg config.Config) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MQ.Backend)) {
	case "", "none":
		return New(Discard{}), nil
	case "memory":
		return New(NewMemoryBroker()), nil
	case "rabbitmq":
		b, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return New(b), nil
	case "pubsub":
		b, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		return New(b), nil
	case "kafka":
		b, err := NewKafkaClient(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		return New(b), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON encodes v as JSON and publishes it.
func (m *MQ) PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
