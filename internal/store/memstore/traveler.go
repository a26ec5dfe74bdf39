package memstore

import (
	"context"
	"strings"

	"github.com/tripdesk/apiserver/internal/store"
	"github.com/tripdesk/apiserver/types"
)

type TravelerRepository struct {
	s *Store
}

// view attaches the owner summary. st is the state locked by the caller.
func (r *TravelerRepository) view(st *state, t types.Traveler) types.Traveler {
	if u, ok := st.users[t.UserID]; ok {
		t.User = u.Summary()
	}
	return t
}

func (r *TravelerRepository) Get(ctx context.Context, id int) (types.Traveler, error) {
	st, done := r.s.reading(ctx)
	defer done()
	t, ok := st.travelers[id]
	if !ok {
		return types.Traveler{}, store.ErrNotFound
	}
	return r.view(st, t), nil
}

func (r *TravelerRepository) FindActiveByUser(ctx context.Context, userID int) (types.Traveler, error) {
	st, done := r.s.reading(ctx)
	defer done()
	all := sortedValues(st.travelers, func(a, b types.Traveler) bool { return a.ID < b.ID })
	for _, t := range all {
		if t.UserID == userID && t.IsActive {
			return r.view(st, t), nil
		}
	}
	return types.Traveler{}, store.ErrNotFound
}

func (r *TravelerRepository) List(ctx context.Context, actor types.Actor, filter types.TravelerFilter) ([]types.Traveler, int, error) {
	st, done := r.s.reading(ctx)
	defer done()

	all := sortedValues(st.travelers, func(a, b types.Traveler) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	search := strings.TrimSpace(filter.Search)
	matched := []types.Traveler{}
	for _, t := range all {
		if !actor.IsAdmin && t.UserID != actor.ID {
			continue
		}
		if filter.IsActive != nil && t.IsActive != *filter.IsActive {
			continue
		}
		t = r.view(st, t)
		if search != "" {
			email := ""
			if t.User != nil {
				email = t.User.Email
			}
			if !containsFold(t.Name, search) && !containsFold(email, search) {
				continue
			}
		}
		matched = append(matched, t)
	}
	page, total := paginate(matched, filter.Page)
	return page, total, nil
}

func (r *TravelerRepository) Create(ctx context.Context, t types.Traveler) (types.Traveler, error) {
	st, done := r.s.writing(ctx)
	defer done()
	if _, ok := st.users[t.UserID]; !ok {
		return types.Traveler{}, store.ErrInvalidReference
	}
	now := r.s.now()
	t.ID = st.nextID()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.User = nil
	st.travelers[t.ID] = t
	return r.view(st, t), nil
}

func (r *TravelerRepository) Update(ctx context.Context, t types.Traveler) (types.Traveler, error) {
	st, done := r.s.writing(ctx)
	defer done()
	existing, ok := st.travelers[t.ID]
	if !ok {
		return types.Traveler{}, store.ErrNotFound
	}
	existing.Name = t.Name
	existing.IsActive = t.IsActive
	existing.UpdatedAt = r.s.now()
	st.travelers[t.ID] = existing
	return r.view(st, existing), nil
}

func (r *TravelerRepository) Deactivate(ctx context.Context, id int) (types.Traveler, error) {
	st, done := r.s.writing(ctx)
	defer done()
	t, ok := st.travelers[id]
	if !ok {
		return types.Traveler{}, store.ErrNotFound
	}
	pending := 0
	for _, tr := range st.trips {
		if tr.TravelerID == id && tr.Status == types.TripStatusRequested {
			pending++
		}
	}
	if pending > 0 {
		return types.Traveler{}, &store.ReferencedError{Count: pending}
	}
	t.IsActive = false
	t.UpdatedAt = r.s.now()
	st.travelers[id] = t
	return r.view(st, t), nil
}

func (r *TravelerRepository) Restore(ctx context.Context, id int) (types.Traveler, error) {
	st, done := r.s.writing(ctx)
	defer done()
	t, ok := st.travelers[id]
	if !ok {
		return types.Traveler{}, store.ErrNotFound
	}
	t.IsActive = true
	t.UpdatedAt = r.s.now()
	st.travelers[id] = t
	return r.view(st, t), nil
}
