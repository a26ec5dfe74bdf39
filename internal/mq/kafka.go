package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tripdesk/apiserver/config"
)

// KafkaClient publishes to and consumes from Kafka topics. The channel name
// is used as the topic.
type KafkaClient struct {
	brokers []string
	groupID string
	writer  *kafka.Writer

	mu      sync.Mutex
	readers []*kafka.Reader
}

// NewKafkaClient constructs a Kafka client from config.
func NewKafkaClient(cfg config.KafkaConfig) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "tripdesk-notifier"
	}

	return &KafkaClient{
		brokers: cfg.Brokers,
		groupID: groupID,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Publish writes one message. The "key" attribute becomes the message key so
// events of one trip request land on one partition.
func (k *KafkaClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("kafka channel is required")
	}

	messageID := newMessageID()
	headers := []kafka.Header{{Key: "message_id", Value: []byte(messageID)}}
	for key, value := range attrs {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	msg := kafka.Message{
		Topic:   channel,
		Key:     []byte(attrs[AttrKey]),
		Value:   data,
		Headers: headers,
		Time:    time.Now(),
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("write message to kafka: %w", err)
	}
	return messageID, nil
}

// Subscribe consumes the topic as part of the configured consumer group.
// Offsets are committed only after the handler succeeds; a failed message
// stops the subscription so it is redelivered on restart.
func (k *KafkaClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("kafka channel is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           k.brokers,
		GroupID:           k.groupID,
		Topic:             channel,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	})
	k.mu.Lock()
	k.readers = append(k.readers, reader)
	k.mu.Unlock()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		message := Message{
			ID:         strconv.FormatInt(msg.Offset, 10),
			Data:       msg.Value,
			Attributes: kafkaHeadersToAttributes(msg.Headers),
		}
		if id := message.Attributes["message_id"]; id != "" {
			message.ID = id
		}
		if err := handler(ctx, message); err != nil {
			return fmt.Errorf("handle kafka message at offset %d: %w", msg.Offset, err)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

// Close closes the writer and every reader opened by Subscribe.
func (k *KafkaClient) Close() error {
	k.mu.Lock()
	readers := k.readers
	k.readers = nil
	k.mu.Unlock()

	var errs []error
	for _, r := range readers {
		errs = append(errs, r.Close())
	}
	errs = append(errs, k.writer.Close())
	return errors.Join(errs...)
}

func kafkaHeadersToAttributes(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for _, h := range headers {
		attrs[h.Key] = string(h.Value)
	}
	return attrs
}
