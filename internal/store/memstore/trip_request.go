package memstore

import (
	"context"
	"strings"

	"github.com/tripdesk/apiserver/internal/store"
	"github.com/tripdesk/apiserver/types"
)

type TripRequestRepository struct {
	s *Store
}

// view resolves the owner, traveler and destination. st is the state locked by the caller.
func (r *TripRequestRepository) view(st *state, tr types.TripRequest) types.TripRequest {
	if t, ok := st.travelers[tr.TravelerID]; ok {
		if u, ok := st.users[t.UserID]; ok {
			t.User = u.Summary()
		}
		tr.OwnerID = t.UserID
		tr.Traveler = t.Summary()
	}
	if d, ok := st.destinations[tr.DestinationID]; ok {
		tr.Destination = &d
	}
	return tr
}

func (r *TripRequestRepository) Get(ctx context.Context, id int) (types.TripRequest, error) {
	st, done := r.s.reading(ctx)
	defer done()
	tr, ok := st.trips[id]
	if !ok {
		return types.TripRequest{}, store.ErrNotFound
	}
	return r.view(st, tr), nil
}

func (r *TripRequestRepository) List(ctx context.Context, actor types.Actor, filter types.TripRequestFilter) ([]types.TripRequest, int, error) {
	st, done := r.s.reading(ctx)
	defer done()

	all := sortedValues(st.trips, func(a, b types.TripRequest) bool {
		if !a.DepartureAt.Equal(b.DepartureAt) {
			return a.DepartureAt.After(b.DepartureAt)
		}
		return a.ID > b.ID
	})

	matched := []types.TripRequest{}
	for _, tr := range all {
		tr = r.view(st, tr)
		if !actor.IsAdmin && tr.OwnerID != actor.ID {
			continue
		}
		if matchTripRequest(tr, filter) {
			matched = append(matched, tr)
		}
	}
	page, total := paginate(matched, filter.Page)
	return page, total, nil
}

func matchTripRequest(tr types.TripRequest, f types.TripRequestFilter) bool {
	if f.Status != "" && tr.Status != f.Status {
		return false
	}
	if f.DestinationID > 0 && tr.DestinationID != f.DestinationID {
		return false
	}
	if f.TravelerID > 0 && tr.TravelerID != f.TravelerID {
		return false
	}
	if f.StartDate != nil && tr.DepartureAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && tr.DepartureAt.After(*f.EndDate) {
		return false
	}

	var dest types.Destination
	if tr.Destination != nil {
		dest = *tr.Destination
	}
	if s := strings.TrimSpace(f.Destination); s != "" {
		if !containsFold(dest.City, s) && !containsFold(dest.State, s) && !containsFold(dest.Country, s) {
			return false
		}
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		name := ""
		if tr.Traveler != nil {
			name = tr.Traveler.Name
		}
		if !containsFold(tr.Description, s) && !containsFold(name, s) &&
			!containsFold(dest.City, s) && !containsFold(dest.Country, s) {
			return false
		}
	}
	return true
}

func (r *TripRequestRepository) Create(ctx context.Context, tr types.TripRequest) (types.TripRequest, error) {
	st, done := r.s.writing(ctx)
	defer done()
	if _, ok := st.travelers[tr.TravelerID]; !ok {
		return types.TripRequest{}, store.ErrInvalidReference
	}
	if _, ok := st.destinations[tr.DestinationID]; !ok {
		return types.TripRequest{}, store.ErrInvalidReference
	}
	now := r.s.now()
	tr.ID = st.nextID()
	tr.CreatedAt = now
	tr.UpdatedAt = now
	tr = strip(tr)
	st.trips[tr.ID] = tr
	return r.view(st, tr), nil
}

func (r *TripRequestRepository) Update(ctx context.Context, tr types.TripRequest, expected types.TripStatus) (types.TripRequest, error) {
	st, done := r.s.writing(ctx)
	defer done()
	existing, err := r.expect(st, tr.ID, expected)
	if err != nil {
		return types.TripRequest{}, err
	}
	if _, ok := st.destinations[tr.DestinationID]; !ok {
		return types.TripRequest{}, store.ErrInvalidReference
	}
	existing.DestinationID = tr.DestinationID
	existing.Description = tr.Description
	existing.DepartureAt = tr.DepartureAt
	existing.ReturnAt = tr.ReturnAt
	existing.UpdatedAt = r.s.now()
	st.trips[tr.ID] = existing
	return r.view(st, existing), nil
}

func (r *TripRequestRepository) UpdateStatus(ctx context.Context, id int, from, to types.TripStatus) (types.TripRequest, error) {
	st, done := r.s.writing(ctx)
	defer done()
	existing, err := r.expect(st, id, from)
	if err != nil {
		return types.TripRequest{}, err
	}
	existing.Status = to
	existing.UpdatedAt = r.s.now()
	st.trips[id] = existing
	return r.view(st, existing), nil
}

func (r *TripRequestRepository) Delete(ctx context.Context, id int, expected types.TripStatus) error {
	st, done := r.s.writing(ctx)
	defer done()
	if _, err := r.expect(st, id, expected); err != nil {
		return err
	}
	delete(st.trips, id)
	return nil
}

// expect loads a trip and checks its stored status. st is the state locked by the caller.
func (r *TripRequestRepository) expect(st *state, id int, status types.TripStatus) (types.TripRequest, error) {
	existing, ok := st.trips[id]
	if !ok {
		return types.TripRequest{}, store.ErrNotFound
	}
	if existing.Status != status {
		return types.TripRequest{}, store.ErrStatusMismatch
	}
	return existing, nil
}

func (r *TripRequestRepository) CountByDestination(ctx context.Context, destinationID int) (int, error) {
	st, done := r.s.reading(ctx)
	defer done()
	count := 0
	for _, tr := range st.trips {
		if tr.DestinationID == destinationID {
			count++
		}
	}
	return count, nil
}

func (r *TripRequestRepository) CountByTraveler(ctx context.Context, travelerID int, status types.TripStatus) (int, error) {
	st, done := r.s.reading(ctx)
	defer done()
	count := 0
	for _, tr := range st.trips {
		if tr.TravelerID == travelerID && tr.Status == status {
			count++
		}
	}
	return count, nil
}

func strip(tr types.TripRequest) types.TripRequest {
	tr.OwnerID = 0
	tr.Traveler = nil
	tr.Destination = nil
	return tr
}
