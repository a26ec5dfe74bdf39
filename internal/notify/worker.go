package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/tripdesk/apiserver/internal/mq"
	"github.com/tripdesk/apiserver/types"
)

// Sink is the external delivery channel for status change events.
type Sink interface {
	Send(ctx context.Context, ev types.TripRequestStatusChanged, text string) error
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Send(ctx context.Context, ev types.TripRequestStatusChanged, text string) error {
	s.Logger.InfoContext(ctx, "trip request status notification",
		"trip_request_id", ev.TripRequestID,
		"user_id", ev.OwnerID,
		"old_status", ev.OldStatus,
		"new_status", ev.NewStatus,
		"message", text,
	)
	return nil
}

// Consumer turns broker messages back into status change events and hands
// them to a sink.
type Consumer struct {
	sink   Sink
	logger *slog.Logger
}

func NewConsumer(sink Sink, logger *slog.Logger) *Consumer {
	return &Consumer{sink: sink, logger: logger}
}

// Handle processes one message. Undecodable messages are dropped so they are
// not redelivered forever; sink failures are returned for redelivery.
func (c *Consumer) Handle(ctx context.Context, msg mq.Message) error {
	if t := msg.Attributes[mq.AttrEventType]; t != "" && t != EventStatusChanged {
		c.logger.DebugContext(ctx, "skipping message", "message_id", msg.ID, "event_type", t)
		return nil
	}

	var ev types.TripRequestStatusChanged
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		c.logger.WarnContext(ctx, "dropping undecodable message", "message_id", msg.ID, "error", err)
		return nil
	}

	text, ok := Message(ev.NewStatus, ev.Destination)
	if !ok {
		return nil
	}
	return c.sink.Send(ctx, ev, text)
}
