package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tripdesk/apiserver/types"
)

// TravelerRepository handles persistence for travelers.
type TravelerRepository struct {
	db *sql.DB
}

func NewTravelerRepository(db *sql.DB) *TravelerRepository {
	return &TravelerRepository{db: db}
}

const travelerSelect = `
	SELECT t.id, t.user_id, t.name, t.is_active, t.created_at, t.updated_at,
		u.name, u.email, u.is_admin
	FROM travelers t
	JOIN users u ON u.id = t.user_id`

func scanTraveler(row rowScanner) (types.Traveler, error) {
	var (
		t    types.Traveler
		user types.UserSummary
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Name,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
		&user.Name,
		&user.Email,
		&user.IsAdmin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Traveler{}, ErrNotFound
		}
		return types.Traveler{}, err
	}
	user.ID = t.UserID
	t.User = &user
	return t, nil
}

func (r *TravelerRepository) Get(ctx context.Context, id int) (types.Traveler, error) {
	return scanTraveler(conn(ctx, r.db).QueryRowContext(ctx, travelerSelect+` WHERE t.id = $1`, id))
}

// FindActiveByUser returns the oldest active traveler of userID.
func (r *TravelerRepository) FindActiveByUser(ctx context.Context, userID int) (types.Traveler, error) {
	query := travelerSelect + ` WHERE t.user_id = $1 AND t.is_active = TRUE ORDER BY t.id LIMIT 1`
	return scanTraveler(conn(ctx, r.db).QueryRowContext(ctx, query, userID))
}

// List returns travelers visible to actor, most recent first.
func (r *TravelerRepository) List(ctx context.Context, actor types.Actor, filter types.TravelerFilter) ([]types.Traveler, int, error) {
	p := travelerPredicates(actor, filter)
	q := conn(ctx, r.db)

	var total int
	countQuery := `SELECT COUNT(*) FROM travelers t JOIN users u ON u.id = t.user_id` + p.where()
	if err := q.QueryRowContext(ctx, countQuery, p.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, args := p.paginate(filter.Page)
	rows, err := q.QueryContext(ctx, travelerSelect+p.where()+` ORDER BY t.created_at DESC, t.id DESC`+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	travelers := []types.Traveler{}
	for rows.Next() {
		t, err := scanTraveler(rows)
		if err != nil {
			return nil, 0, err
		}
		travelers = append(travelers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return travelers, total, nil
}

func (r *TravelerRepository) Create(ctx context.Context, t types.Traveler) (types.Traveler, error) {
	now := time.Now()
	const query = `
		INSERT INTO travelers (user_id, name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id`
	var id int
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, t.UserID, t.Name, t.IsActive, now).Scan(&id); err != nil {
		return types.Traveler{}, translate(err)
	}
	return r.Get(ctx, id)
}

// Update writes the name and active flag. The owner is never updated.
func (r *TravelerRepository) Update(ctx context.Context, t types.Traveler) (types.Traveler, error) {
	const query = `
		UPDATE travelers
		SET name = $1,
			is_active = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, t.Name, t.IsActive, time.Now(), t.ID)
	if err != nil {
		return types.Traveler{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Traveler{}, err
	}
	if affected == 0 {
		return types.Traveler{}, ErrNotFound
	}
	return r.Get(ctx, t.ID)
}

// Deactivate clears is_active unless the traveler has requested trips, in
// which case a *ReferencedError with the number of requested trips is
// returned and nothing changes. The guard and the count share one statement
// snapshot.
func (r *TravelerRepository) Deactivate(ctx context.Context, id int) (types.Traveler, error) {
	const query = `
		WITH blockers AS (
			SELECT COUNT(*) AS n FROM trip_requests
			WHERE traveler_id = $1 AND status = 'requested'
		), updated AS (
			UPDATE travelers
			SET is_active = FALSE,
				updated_at = $2
			WHERE id = $1 AND (SELECT n FROM blockers) = 0
			RETURNING id
		)
		SELECT
			EXISTS (SELECT 1 FROM travelers WHERE id = $1),
			EXISTS (SELECT 1 FROM updated),
			(SELECT n FROM blockers)`

	var (
		found, changed bool
		count          int
	)
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id, time.Now()).Scan(&found, &changed, &count)
	switch {
	case err != nil:
		return types.Traveler{}, err
	case !found:
		return types.Traveler{}, ErrNotFound
	case !changed:
		return types.Traveler{}, &ReferencedError{Count: count}
	}
	return r.Get(ctx, id)
}

// Restore sets is_active unconditionally.
func (r *TravelerRepository) Restore(ctx context.Context, id int) (types.Traveler, error) {
	const query = `UPDATE travelers SET is_active = TRUE, updated_at = $2 WHERE id = $1`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return types.Traveler{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Traveler{}, err
	}
	if affected == 0 {
		return types.Traveler{}, ErrNotFound
	}
	return r.Get(ctx, id)
}
