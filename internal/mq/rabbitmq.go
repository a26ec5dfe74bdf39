package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tripdesk/apiserver/config"
)

// RabbitMQClient wraps a RabbitMQ connection with separate publish and
// consume channels. The publish channel is guarded since amqp channels are
// not safe for concurrent use.
type RabbitMQClient struct {
	conn            *amqp.Connection
	publishMu       sync.Mutex
	publishCh       *amqp.Channel
	declared        map[string]bool
	queueDurable    bool
	queueAutoDelete bool
	prefetchCount   int
}

// NewRabbitMQClient constructs a RabbitMQ client from config.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQClient{
		conn:            conn,
		publishCh:       ch,
		declared:        map[string]bool{},
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		prefetchCount:   cfg.PrefetchCount,
	}, nil
}

// Publish sends a JSON message to the named queue. Messages are persistent
// when the queue is durable.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	if !r.declared[channel] {
		if _, err := declareQueue(r.publishCh, channel, r.queueDurable, r.queueAutoDelete); err != nil {
			return "", err
		}
		r.declared[channel] = true
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	deliveryMode := amqp.Transient
	if r.queueDurable {
		deliveryMode = amqp.Persistent
	}

	messageID := newMessageID()
	err := r.publishCh.PublishWithContext(ctx, "", channel, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: deliveryMode,
		MessageId:    messageID,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes messages from the named queue on a dedicated channel.
// A message that fails twice is dropped instead of requeued again.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
	}()

	if r.prefetchCount > 0 {
		if err := ch.Qos(r.prefetchCount, 0, false); err != nil {
			return err
		}
	}
	if _, err := declareQueue(ch, channel, r.queueDurable, r.queueAutoDelete); err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("tripdesk-%s", newMessageID())
	deliveries, err := ch.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				_ = delivery.Nack(false, !delivery.Redelivered)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the publish channel and the connection.
func (r *RabbitMQClient) Close() error {
	if r.publishCh != nil {
		_ = r.publishCh.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func declareQueue(ch *amqp.Channel, name string, durable, autoDelete bool) (amqp.Queue, error) {
	return ch.QueueDeclare(name, durable, autoDelete, false, false, nil)
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
