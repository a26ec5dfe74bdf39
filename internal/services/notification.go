package services

import (
	"context"

	"github.com/tripdesk/apiserver/internal/policy"
	"github.com/tripdesk/apiserver/types"
)

// NotificationRepository defines read and check operations on notifications.
type NotificationRepository interface {
	Get(ctx context.Context, id int) (types.UserNotification, error)
	List(ctx context.Context, userID int, filter types.NotificationFilter) ([]types.UserNotification, int, error)
	MarkChecked(ctx context.Context, id int) (types.UserNotification, error)
	CountUnchecked(ctx context.Context, userID int) (int, error)
}

// NotificationService exposes an actor's own notifications.
type NotificationService struct {
	notifications NotificationRepository
}

func NewNotificationService(notifications NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

func (s *NotificationService) List(ctx context.Context, actor types.Actor, filter types.NotificationFilter) ([]types.UserNotification, int, error) {
	return s.notifications.List(ctx, actor.ID, filter)
}

// Check marks a notification as read. Only the addressee may check it.
func (s *NotificationService) Check(ctx context.Context, actor types.Actor, id int) (types.UserNotification, error) {
	n, err := s.notifications.Get(ctx, id)
	if err != nil {
		return types.UserNotification{}, err
	}
	if !policy.CanCheckNotification(actor, n) {
		return types.UserNotification{}, types.ErrUnauthorized
	}
	if n.IsChecked {
		return n, nil
	}
	return s.notifications.MarkChecked(ctx, id)
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor types.Actor) (int, error) {
	return s.notifications.CountUnchecked(ctx, actor.ID)
}
