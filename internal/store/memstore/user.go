package memstore

import (
	"context"

	"github.com/tripdesk/apiserver/internal/store"
	"github.com/tripdesk/apiserver/types"
)

type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	st, done := r.s.reading(ctx)
	defer done()
	u, ok := st.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	st, done := r.s.reading(ctx)
	defer done()
	email = types.NormalizeEmail(email)
	for _, u := range st.users {
		if types.NormalizeEmail(u.Email) == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	st, done := r.s.writing(ctx)
	defer done()
	if r.emailTaken(st, user.Email, 0) {
		return types.User{}, store.ErrDuplicateEmail
	}
	now := r.s.now()
	user.ID = st.nextID()
	user.CreatedAt = now
	user.UpdatedAt = now
	st.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	st, done := r.s.writing(ctx)
	defer done()
	existing, ok := st.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if r.emailTaken(st, user.Email, user.ID) {
		return types.User{}, store.ErrDuplicateEmail
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = r.s.now()
	st.users[user.ID] = user
	return user, nil
}

// emailTaken must be called with st locked.
func (r *UserRepository) emailTaken(st *state, email string, exceptID int) bool {
	email = types.NormalizeEmail(email)
	for id, u := range st.users {
		if id != exceptID && types.NormalizeEmail(u.Email) == email {
			return true
		}
	}
	return false
}
