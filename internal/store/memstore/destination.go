package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/tripdesk/apiserver/internal/store"
	"github.com/tripdesk/apiserver/types"
)

type DestinationRepository struct {
	s *Store
}

func (r *DestinationRepository) Get(ctx context.Context, id int) (types.Destination, error) {
	st, done := r.s.reading(ctx)
	defer done()
	d, ok := st.destinations[id]
	if !ok {
		return types.Destination{}, store.ErrNotFound
	}
	return d, nil
}

func (r *DestinationRepository) List(ctx context.Context, filter types.DestinationFilter) ([]types.Destination, int, error) {
	st, done := r.s.reading(ctx)
	defer done()

	all := sortedValues(st.destinations, func(a, b types.Destination) bool {
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		if a.City != b.City {
			return a.City < b.City
		}
		return a.ID < b.ID
	})

	search := strings.TrimSpace(filter.Search)
	matched := []types.Destination{}
	for _, d := range all {
		if search != "" && !containsFold(d.City, search) && !containsFold(d.State, search) && !containsFold(d.Country, search) {
			continue
		}
		if filter.Country != "" && d.Country != filter.Country {
			continue
		}
		if filter.State != "" && d.State != filter.State {
			continue
		}
		matched = append(matched, d)
	}
	page, total := paginate(matched, filter.Page)
	return page, total, nil
}

func (r *DestinationRepository) Create(ctx context.Context, d types.Destination) (types.Destination, error) {
	st, done := r.s.writing(ctx)
	defer done()
	now := r.s.now()
	d.ID = st.nextID()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.TripRequestsCount = nil
	st.destinations[d.ID] = d
	return d, nil
}

func (r *DestinationRepository) Update(ctx context.Context, d types.Destination) (types.Destination, error) {
	st, done := r.s.writing(ctx)
	defer done()
	existing, ok := st.destinations[d.ID]
	if !ok {
		return types.Destination{}, store.ErrNotFound
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = r.s.now()
	d.TripRequestsCount = nil
	st.destinations[d.ID] = d
	return d, nil
}

func (r *DestinationRepository) Delete(ctx context.Context, id int) error {
	st, done := r.s.writing(ctx)
	defer done()
	if _, ok := st.destinations[id]; !ok {
		return store.ErrNotFound
	}
	dependents := 0
	for _, tr := range st.trips {
		if tr.DestinationID == id {
			dependents++
		}
	}
	if dependents > 0 {
		return &store.ReferencedError{Count: dependents}
	}
	delete(st.destinations, id)
	return nil
}

func (r *DestinationRepository) Countries(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, func(d types.Destination) (string, bool) {
		return d.Country, true
	}), nil
}

func (r *DestinationRepository) States(ctx context.Context, country string) ([]string, error) {
	return r.distinct(ctx, func(d types.Destination) (string, bool) {
		return d.State, d.State != "" && (country == "" || d.Country == country)
	}), nil
}

func (r *DestinationRepository) distinct(ctx context.Context, pick func(types.Destination) (string, bool)) []string {
	st, done := r.s.reading(ctx)
	defer done()
	seen := map[string]struct{}{}
	out := []string{}
	for _, d := range st.destinations {
		v, ok := pick(d)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
