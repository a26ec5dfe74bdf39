package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tripdesk/apiserver/types"
)

// TripRequestRepository handles persistence for trip requests. Status writes
// are conditional on the expected current status.
type TripRequestRepository struct {
	db *sql.DB
}

func NewTripRequestRepository(db *sql.DB) *TripRequestRepository {
	return &TripRequestRepository{db: db}
}

const tripRequestFrom = `
	FROM trip_requests tr
	JOIN travelers t ON t.id = tr.traveler_id
	JOIN users u ON u.id = t.user_id
	JOIN destinations d ON d.id = tr.destination_id`

const tripRequestSelect = `
	SELECT tr.id, tr.traveler_id, tr.destination_id, COALESCE(tr.description, ''),
		tr.departure_datetime, tr.return_datetime, tr.status, tr.created_at, tr.updated_at,
		t.name, t.is_active, u.id, u.name, u.email, u.is_admin,
		d.city, COALESCE(d.state, ''), d.country, d.created_at, d.updated_at` + tripRequestFrom

func scanTripRequest(row rowScanner) (types.TripRequest, error) {
	var (
		tr       types.TripRequest
		traveler types.TravelerSummary
		user     types.UserSummary
		dest     types.Destination
	)
	err := row.Scan(
		&tr.ID,
		&tr.TravelerID,
		&tr.DestinationID,
		&tr.Description,
		&tr.DepartureAt,
		&tr.ReturnAt,
		&tr.Status,
		&tr.CreatedAt,
		&tr.UpdatedAt,
		&traveler.Name,
		&traveler.IsActive,
		&user.ID,
		&user.Name,
		&user.Email,
		&user.IsAdmin,
		&dest.City,
		&dest.State,
		&dest.Country,
		&dest.CreatedAt,
		&dest.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.TripRequest{}, ErrNotFound
		}
		return types.TripRequest{}, err
	}
	traveler.ID = tr.TravelerID
	traveler.User = &user
	dest.ID = tr.DestinationID

	tr.OwnerID = user.ID
	tr.Traveler = &traveler
	tr.Destination = &dest
	return tr, nil
}

func (r *TripRequestRepository) Get(ctx context.Context, id int) (types.TripRequest, error) {
	return scanTripRequest(conn(ctx, r.db).QueryRowContext(ctx, tripRequestSelect+` WHERE tr.id = $1`, id))
}

// List returns the trip requests visible to actor, latest departure first.
func (r *TripRequestRepository) List(ctx context.Context, actor types.Actor, filter types.TripRequestFilter) ([]types.TripRequest, int, error) {
	p := tripRequestPredicates(actor, filter)
	q := conn(ctx, r.db)

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*)`+tripRequestFrom+p.where(), p.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, args := p.paginate(filter.Page)
	rows, err := q.QueryContext(ctx, tripRequestSelect+p.where()+` ORDER BY tr.departure_datetime DESC, tr.id DESC`+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	trips := []types.TripRequest{}
	for rows.Next() {
		tr, err := scanTripRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		trips = append(trips, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return trips, total, nil
}

func (r *TripRequestRepository) Create(ctx context.Context, tr types.TripRequest) (types.TripRequest, error) {
	now := time.Now()
	const query = `
		INSERT INTO trip_requests
			(traveler_id, destination_id, description, departure_datetime, return_datetime, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`
	var id int
	if err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		tr.TravelerID,
		tr.DestinationID,
		nullable(tr.Description),
		tr.DepartureAt,
		tr.ReturnAt,
		string(tr.Status),
		now,
	).Scan(&id); err != nil {
		return types.TripRequest{}, translate(err)
	}
	return r.Get(ctx, id)
}

// Update writes the owner-editable fields of tr if its stored status is
// still expected.
func (r *TripRequestRepository) Update(ctx context.Context, tr types.TripRequest, expected types.TripStatus) (types.TripRequest, error) {
	const query = `
		UPDATE trip_requests
		SET destination_id = $1,
			description = $2,
			departure_datetime = $3,
			return_datetime = $4,
			updated_at = $5
		WHERE id = $6 AND status = $7`
	result, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		tr.DestinationID,
		nullable(tr.Description),
		tr.DepartureAt,
		tr.ReturnAt,
		time.Now(),
		tr.ID,
		string(expected),
	)
	if err != nil {
		return types.TripRequest{}, translate(err)
	}
	if err := r.checkConditional(ctx, result, tr.ID); err != nil {
		return types.TripRequest{}, err
	}
	return r.Get(ctx, tr.ID)
}

// UpdateStatus moves the trip request from one status to another. It returns
// ErrStatusMismatch when the stored status is no longer from.
func (r *TripRequestRepository) UpdateStatus(ctx context.Context, id int, from, to types.TripStatus) (types.TripRequest, error) {
	const query = `UPDATE trip_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, string(to), time.Now(), id, string(from))
	if err != nil {
		return types.TripRequest{}, err
	}
	if err := r.checkConditional(ctx, result, id); err != nil {
		return types.TripRequest{}, err
	}
	return r.Get(ctx, id)
}

// Delete removes the trip request if its stored status is still expected.
func (r *TripRequestRepository) Delete(ctx context.Context, id int, expected types.TripStatus) error {
	const query = `DELETE FROM trip_requests WHERE id = $1 AND status = $2`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, string(expected))
	if err != nil {
		return err
	}
	return r.checkConditional(ctx, result, id)
}

// checkConditional tells a missing row apart from a lost status race.
func (r *TripRequestRepository) checkConditional(ctx context.Context, result sql.Result, id int) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM trip_requests WHERE id = $1)`
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusMismatch
}

func (r *TripRequestRepository) CountByDestination(ctx context.Context, destinationID int) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM trip_requests WHERE destination_id = $1`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, destinationID).Scan(&count)
	return count, err
}

func (r *TripRequestRepository) CountByTraveler(ctx context.Context, travelerID int, status types.TripStatus) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM trip_requests WHERE traveler_id = $1 AND status = $2`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, travelerID, string(status)).Scan(&count)
	return count, err
}
