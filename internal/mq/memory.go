package mq

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// MemoryBroker is an in-process backend. Published messages are buffered per
// channel and delivered to one subscriber at a time; with no subscriber they
// wait in the buffer.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan Message
	seq    int
	closed bool
}

const memoryQueueSize = 1024

var ErrBrokerClosed = errors.New("mq: broker closed")

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{queues: map[string]chan Message{}}
}

func (b *MemoryBroker) queue(channel string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, memoryQueueSize)
		b.queues[channel] = q
	}
	return q, nil
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	q, err := b.queue(channel)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.seq++
	id := strconv.Itoa(b.seq)
	b.mu.Unlock()

	msg := Message{ID: id, Data: append([]byte(nil), data...), Attributes: attrs}
	select {
	case q <- msg:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Subscribe delivers messages until ctx is done. A failed message is
// redelivered once.
func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	q, err := b.queue(channel)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				_ = handler(ctx, msg)
			}
		}
	}
}

// Pending reports how many messages are buffered on channel.
func (b *MemoryBroker) Pending(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[channel])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Discard drops every published message. It backs the "none" backend.
type Discard struct{}

func (Discard) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", nil
}

func (Discard) Subscribe(ctx context.Context, _ string, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (Discard) Close() error {
	return nil
}
