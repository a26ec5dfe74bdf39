package memstore

import (
	"context"

	"github.com/tripdesk/apiserver/internal/store"
	"github.com/tripdesk/apiserver/types"
)

type NotificationRepository struct {
	s *Store
}

func (r *NotificationRepository) Create(ctx context.Context, n types.UserNotification) (types.UserNotification, error) {
	st, done := r.s.writing(ctx)
	defer done()
	if _, ok := st.users[n.UserID]; !ok {
		return types.UserNotification{}, store.ErrInvalidReference
	}
	now := r.s.now()
	n.ID = st.nextID()
	n.CreatedAt = now
	n.UpdatedAt = now
	st.notifications[n.ID] = n
	return n, nil
}

func (r *NotificationRepository) Get(ctx context.Context, id int) (types.UserNotification, error) {
	st, done := r.s.reading(ctx)
	defer done()
	n, ok := st.notifications[id]
	if !ok {
		return types.UserNotification{}, store.ErrNotFound
	}
	return n, nil
}

func (r *NotificationRepository) List(ctx context.Context, userID int, filter types.NotificationFilter) ([]types.UserNotification, int, error) {
	st, done := r.s.reading(ctx)
	defer done()
	all := sortedValues(st.notifications, func(a, b types.UserNotification) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	matched := []types.UserNotification{}
	for _, n := range all {
		if n.UserID != userID || (filter.UncheckedOnly && n.IsChecked) {
			continue
		}
		matched = append(matched, n)
	}
	page, total := paginate(matched, filter.Page)
	return page, total, nil
}

func (r *NotificationRepository) MarkChecked(ctx context.Context, id int) (types.UserNotification, error) {
	st, done := r.s.writing(ctx)
	defer done()
	n, ok := st.notifications[id]
	if !ok {
		return types.UserNotification{}, store.ErrNotFound
	}
	n.IsChecked = true
	n.UpdatedAt = r.s.now()
	st.notifications[id] = n
	return n, nil
}

func (r *NotificationRepository) CountUnchecked(ctx context.Context, userID int) (int, error) {
	st, done := r.s.reading(ctx)
	defer done()
	count := 0
	for _, n := range st.notifications {
		if n.UserID == userID && !n.IsChecked {
			count++
		}
	}
	return count, nil
}
