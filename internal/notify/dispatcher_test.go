package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/apiserver/internal/mq"
	"github.com/tripdesk/apiserver/types"
)

type MockNotificationCreator struct {
	mock.Mock
}

func (m *MockNotificationCreator) Create(ctx context.Context, n types.UserNotification) (types.UserNotification, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(types.UserNotification), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error) {
	args := m.Called(ctx, channel, v, attrs)
	return args.String(0), args.Error(1)
}

func approvedEvent() types.TripRequestStatusChanged {
	return types.TripRequestStatusChanged{
		TripRequestID: 12,
		OwnerID:       3,
		Destination:   "Curitiba, PR, Brasil",
		OldStatus:     types.TripStatusRequested,
		NewStatus:     types.TripStatusApproved,
		OccurredAt:    time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMessage(t *testing.T) {
	text, ok := Message(types.TripStatusApproved, "Curitiba, PR, Brasil")
	assert.True(t, ok)
	assert.Equal(t, "Your trip request to Curitiba, PR, Brasil has been approved.", text)

	text, ok = Message(types.TripStatusCancelled, "Paris, França")
	assert.True(t, ok)
	assert.Contains(t, text, "cancelled")

	_, ok = Message(types.TripStatusRequested, "Paris, França")
	assert.False(t, ok)
}

func TestDeliverCreatesNotificationAndPublishes(t *testing.T) {
	creator := new(MockNotificationCreator)
	publisher := new(MockPublisher)
	ev := approvedEvent()

	creator.On("Create", mock.Anything, types.UserNotification{
		UserID:  3,
		Message: "Your trip request to Curitiba, PR, Brasil has been approved.",
	}).Return(types.UserNotification{ID: 1, UserID: 3}, nil).Once()
	publisher.On("PublishJSON", mock.Anything, "trip-request-status", ev, map[string]string{
		mq.AttrEventType: EventStatusChanged,
		mq.AttrKey:       "12",
	}).Return("msg-1", nil).Once()

	d := NewDispatcher(creator, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		WithPublisher(publisher, "trip-request-status"))

	require.NoError(t, d.Deliver(context.Background(), ev))
	creator.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestDeliverSkipsUntemplatedStatus(t *testing.T) {
	creator := new(MockNotificationCreator)
	d := NewDispatcher(creator, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	ev := approvedEvent()
	ev.NewStatus = types.TripStatusRequested
	require.NoError(t, d.Deliver(context.Background(), ev))
	creator.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEmitLogsFailuresAndSurvivesCancellation(t *testing.T) {
	creator := new(MockNotificationCreator)
	creator.On("Create", mock.Anything, mock.Anything).
		Return(types.UserNotification{}, errors.New("db down")).Once()

	var logs bytes.Buffer
	d := NewDispatcher(creator, slog.New(slog.NewTextHandler(&logs, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Emit(ctx, approvedEvent())
	d.Wait()

	creator.AssertExpectations(t)
	assert.Contains(t, logs.String(), "notification delivery failed")
	assert.Contains(t, logs.String(), "db down")
}

type recordingSink struct {
	events []types.TripRequestStatusChanged
	texts  []string
}

func (s *recordingSink) Send(_ context.Context, ev types.TripRequestStatusChanged, text string) error {
	s.events = append(s.events, ev)
	s.texts = append(s.texts, text)
	return nil
}

func TestConsumerHandle(t *testing.T) {
	sink := &recordingSink{}
	c := NewConsumer(sink, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	ctx := context.Background()

	require.NoError(t, c.Handle(ctx, mq.Message{
		ID:         "1",
		Data:       []byte(`{"trip_request_id":12,"owner_id":3,"destination":"Lisboa, Portugal","old_status":"requested","new_status":"cancelled"}`),
		Attributes: map[string]string{mq.AttrEventType: EventStatusChanged},
	}))
	require.NoError(t, c.Handle(ctx, mq.Message{ID: "2", Data: []byte("{not json")}))
	require.NoError(t, c.Handle(ctx, mq.Message{ID: "3", Data: []byte(`{}`), Attributes: map[string]string{mq.AttrEventType: "other"}}))

	require.Len(t, sink.events, 1)
	assert.Equal(t, 12, sink.events[0].TripRequestID)
	assert.Equal(t, "Your trip request to Lisboa, Portugal has been cancelled.", sink.texts[0])
}
