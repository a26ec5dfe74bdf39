package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/tripdesk/apiserver/internal/metrics"
	"github.com/tripdesk/apiserver/internal/mq"
	"github.com/tripdesk/apiserver/types"
)

const (
	defaultDeliveryTimeout = 10 * time.Second

	// EventStatusChanged is the event_type attribute of published messages.
	EventStatusChanged = "trip_request.status_changed"
)

// NotificationCreator persists user notifications.
type NotificationCreator interface {
	Create(ctx context.Context, n types.UserNotification) (types.UserNotification, error)
}

// Publisher forwards events to a message broker.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error)
}

// Dispatcher consumes status change events off the request path. It stores
// the owner's notification and forwards the event to the broker. Failures are
// logged and counted, never returned to the emitter.
type Dispatcher struct {
	notifications NotificationCreator
	publisher     Publisher
	channel       string
	logger        *slog.Logger
	metrics       *metrics.Metrics
	timeout       time.Duration
	wg            sync.WaitGroup
}

type Option func(*Dispatcher)

// WithPublisher forwards every delivered event to channel.
func WithPublisher(p Publisher, channel string) Option {
	return func(d *Dispatcher) {
		d.publisher = p
		d.channel = channel
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTimeout bounds a single delivery.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func NewDispatcher(notifications NotificationCreator, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		notifications: notifications,
		logger:        logger,
		timeout:       defaultDeliveryTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Emit schedules delivery of ev and returns immediately. The delivery
// outlives the caller's context cancellation.
func (d *Dispatcher) Emit(ctx context.Context, ev types.TripRequestStatusChanged) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.Deliver(ctx, ev); err != nil {
			d.metrics.IncrementNotificationsFailed()
			d.logger.ErrorContext(ctx, "notification delivery failed",
				"trip_request_id", ev.TripRequestID,
				"new_status", ev.NewStatus,
				"error", err,
			)
		}
	}()
}

// Deliver stores the notification for ev and publishes the event. A broker
// failure does not undo the stored notification.
func (d *Dispatcher) Deliver(ctx context.Context, ev types.TripRequestStatusChanged) error {
	text, ok := Message(ev.NewStatus, ev.Destination)
	if !ok {
		return nil
	}

	n, err := d.notifications.Create(ctx, types.UserNotification{UserID: ev.OwnerID, Message: text})
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	d.metrics.IncrementNotificationsCreated()
	d.logger.InfoContext(ctx, "notification created",
		"notification_id", n.ID,
		"user_id", ev.OwnerID,
		"trip_request_id", ev.TripRequestID,
	)

	if d.publisher == nil {
		return nil
	}
	attrs := map[string]string{
		mq.AttrEventType: EventStatusChanged,
		mq.AttrKey:       strconv.Itoa(ev.TripRequestID),
	}
	if _, err := d.publisher.PublishJSON(ctx, d.channel, ev, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", EventStatusChanged, err)
	}
	return nil
}

// Wait blocks until every scheduled delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
