// Package memstore is an in-memory implementation of the repositories. It
// backs the "memory" database driver and the service and handler tests.
package memstore

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tripdesk/apiserver/types"
)

type state struct {
	users         map[int]types.User
	travelers     map[int]types.Traveler
	destinations  map[int]types.Destination
	trips         map[int]types.TripRequest
	notifications map[int]types.UserNotification
	seq           int
}

func newState() *state {
	return &state{
		users:         map[int]types.User{},
		travelers:     map[int]types.Traveler{},
		destinations:  map[int]types.Destination{},
		trips:         map[int]types.TripRequest{},
		notifications: map[int]types.UserNotification{},
	}
}

func (st *state) clone() *state {
	return &state{
		users:         maps.Clone(st.users),
		travelers:     maps.Clone(st.travelers),
		destinations:  maps.Clone(st.destinations),
		trips:         maps.Clone(st.trips),
		notifications: maps.Clone(st.notifications),
		seq:           st.seq,
	}
}

func (st *state) nextID() int {
	st.seq++
	return st.seq
}

// Store holds every table in memory. Writers are serialized on txMu. A
// transaction stages its writes on a private copy of the tables, invisible to
// other readers, and swaps it in on commit; a failed transaction drops the copy.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	st   *state
	now  func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

type txKey struct{}

// tx is the staged state of an open transaction.
type tx struct {
	mu sync.Mutex
	st *state
}

func txFrom(ctx context.Context) (*tx, bool) {
	t, ok := ctx.Value(txKey{}).(*tx)
	return t, ok
}

// RunInTx runs fn atomically. Writes outside fn wait until it finishes, so
// fn must pass its ctx to every repository call.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	t := &tx{st: s.st.clone()}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = t.st
	s.mu.Unlock()
	return nil
}

// reading returns the state visible to ctx, locked for reading until done
// is called.
func (s *Store) reading(ctx context.Context) (st *state, done func()) {
	if t, ok := txFrom(ctx); ok {
		t.mu.Lock()
		return t.st, t.mu.Unlock
	}
	s.mu.RLock()
	return s.st, s.mu.RUnlock
}

// writing returns the state ctx writes to, locked until done is called.
func (s *Store) writing(ctx context.Context) (st *state, done func()) {
	if t, ok := txFrom(ctx); ok {
		t.mu.Lock()
		return t.st, t.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return s.st, func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

func (s *Store) Travelers() *TravelerRepository {
	return &TravelerRepository{s: s}
}

func (s *Store) Destinations() *DestinationRepository {
	return &DestinationRepository{s: s}
}

func (s *Store) TripRequests() *TripRequestRepository {
	return &TripRequestRepository{s: s}
}

func (s *Store) Notifications() *NotificationRepository {
	return &NotificationRepository{s: s}
}

// paginate slices items per page and returns the total before slicing.
func paginate[T any](items []T, page types.Page) ([]T, int) {
	total := len(items)
	if page.All || page.Size <= 0 {
		return items, total
	}
	start := page.Offset()
	if start >= total {
		return []T{}, total
	}
	end := min(start+page.Size, total)
	return items[start:end], total
}

func containsFold(value, term string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(term))
}

func sortedValues[T any](m map[int]T, less func(a, b T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
