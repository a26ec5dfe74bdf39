package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tripdesk/apiserver/types"
)

// NotificationRepository handles persistence for user notifications.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationSelect = `
	SELECT n.id, n.user_id, n.message, n.is_checked, n.created_at, n.updated_at
	FROM notifications n`

func scanNotification(row rowScanner) (types.UserNotification, error) {
	var n types.UserNotification
	err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.IsChecked, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.UserNotification{}, ErrNotFound
		}
		return types.UserNotification{}, err
	}
	return n, nil
}

func (r *NotificationRepository) Create(ctx context.Context, n types.UserNotification) (types.UserNotification, error) {
	now := time.Now()
	n.CreatedAt = now
	n.UpdatedAt = now

	const query = `
		INSERT INTO notifications (user_id, message, is_checked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := conn(ctx, r.db).QueryRowContext(
		ctx, query, n.UserID, n.Message, n.IsChecked, n.CreatedAt, n.UpdatedAt,
	).Scan(&n.ID); err != nil {
		return types.UserNotification{}, translate(err)
	}
	return n, nil
}

func (r *NotificationRepository) Get(ctx context.Context, id int) (types.UserNotification, error) {
	return scanNotification(conn(ctx, r.db).QueryRowContext(ctx, notificationSelect+` WHERE n.id = $1`, id))
}

// List returns the notifications of userID, newest first.
func (r *NotificationRepository) List(ctx context.Context, userID int, filter types.NotificationFilter) ([]types.UserNotification, int, error) {
	p := notificationPredicates(userID, filter)
	q := conn(ctx, r.db)

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications n`+p.where(), p.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, args := p.paginate(filter.Page)
	rows, err := q.QueryContext(ctx, notificationSelect+p.where()+` ORDER BY n.created_at DESC, n.id DESC`+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notifications := []types.UserNotification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *NotificationRepository) MarkChecked(ctx context.Context, id int) (types.UserNotification, error) {
	const query = `UPDATE notifications SET is_checked = TRUE, updated_at = $2 WHERE id = $1`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return types.UserNotification{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.UserNotification{}, err
	}
	if affected == 0 {
		return types.UserNotification{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *NotificationRepository) CountUnchecked(ctx context.Context, userID int) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_checked = FALSE`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(&count)
	return count, err
}
