package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tripdesk/apiserver/types"
)

// DestinationRepository handles persistence for destinations.
type DestinationRepository struct {
	db *sql.DB
}

func NewDestinationRepository(db *sql.DB) *DestinationRepository {
	return &DestinationRepository{db: db}
}

const destinationSelect = `
	SELECT d.id, d.city, COALESCE(d.state, ''), d.country, d.created_at, d.updated_at
	FROM destinations d`

func scanDestination(row rowScanner) (types.Destination, error) {
	var d types.Destination
	err := row.Scan(&d.ID, &d.City, &d.State, &d.Country, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Destination{}, ErrNotFound
		}
		return types.Destination{}, err
	}
	return d, nil
}

// nullable stores an empty state as NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *DestinationRepository) Get(ctx context.Context, id int) (types.Destination, error) {
	return scanDestination(conn(ctx, r.db).QueryRowContext(ctx, destinationSelect+` WHERE d.id = $1`, id))
}

// List returns destinations ordered by country then city.
func (r *DestinationRepository) List(ctx context.Context, filter types.DestinationFilter) ([]types.Destination, int, error) {
	p := destinationPredicates(filter)
	q := conn(ctx, r.db)

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM destinations d`+p.where(), p.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, args := p.paginate(filter.Page)
	rows, err := q.QueryContext(ctx, destinationSelect+p.where()+` ORDER BY d.country, d.city, d.id`+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	destinations := []types.Destination{}
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, 0, err
		}
		destinations = append(destinations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return destinations, total, nil
}

func (r *DestinationRepository) Create(ctx context.Context, d types.Destination) (types.Destination, error) {
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now

	const query = `
		INSERT INTO destinations (city, state, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		d.City,
		nullable(d.State),
		d.Country,
		d.CreatedAt,
		d.UpdatedAt,
	).Scan(&d.ID); err != nil {
		return types.Destination{}, err
	}
	return d, nil
}

func (r *DestinationRepository) Update(ctx context.Context, d types.Destination) (types.Destination, error) {
	d.UpdatedAt = time.Now()

	const query = `
		UPDATE destinations
		SET city = $1,
			state = $2,
			country = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, d.City, nullable(d.State), d.Country, d.UpdatedAt, d.ID)
	if err != nil {
		return types.Destination{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Destination{}, err
	}
	if affected == 0 {
		return types.Destination{}, ErrNotFound
	}
	return d, nil
}

// Delete removes the destination unless a trip request references it, in
// which case a *ReferencedError with the number of referencing trip requests
// is returned and the row is kept. The guard and the count share one
// statement snapshot.
func (r *DestinationRepository) Delete(ctx context.Context, id int) error {
	const query = `
		WITH blockers AS (
			SELECT COUNT(*) AS n FROM trip_requests WHERE destination_id = $1
		), deleted AS (
			DELETE FROM destinations
			WHERE id = $1 AND (SELECT n FROM blockers) = 0
			RETURNING id
		)
		SELECT
			EXISTS (SELECT 1 FROM destinations WHERE id = $1),
			EXISTS (SELECT 1 FROM deleted),
			(SELECT n FROM blockers)`

	var (
		found, removed bool
		count          int
		err            error
	)
	// A trip request inserted after the snapshot fails the delete on its
	// foreign key; the second attempt counts it.
	for attempt := 0; attempt < 2; attempt++ {
		err = conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&found, &removed, &count)
		if pqCode(err) != pqForeignKeyViolation {
			break
		}
	}
	switch {
	case err != nil:
		return translate(err)
	case !found:
		return ErrNotFound
	case !removed:
		return &ReferencedError{Count: count}
	default:
		return nil
	}
}

// Countries returns the distinct countries in alphabetical order.
func (r *DestinationRepository) Countries(ctx context.Context) ([]string, error) {
	return r.column(ctx, `SELECT DISTINCT country FROM destinations ORDER BY country`)
}

// States returns the distinct non-empty states, optionally within country.
func (r *DestinationRepository) States(ctx context.Context, country string) ([]string, error) {
	if country == "" {
		return r.column(ctx, `SELECT DISTINCT state FROM destinations WHERE state IS NOT NULL AND state <> '' ORDER BY state`)
	}
	return r.column(ctx, `
		SELECT DISTINCT state FROM destinations
		WHERE country = $1 AND state IS NOT NULL AND state <> ''
		ORDER BY state`, country)
}

func (r *DestinationRepository) column(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
