package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripdesk/apiserver/internal/logging"
	"github.com/tripdesk/apiserver/internal/notify"
	"github.com/tripdesk/apiserver/internal/store/memstore"
	"github.com/tripdesk/apiserver/types"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store        *memstore.Store
	dispatcher   *notify.Dispatcher
	users        *UserService
	travelers    *TravelerService
	destinations *DestinationService
	trips        *TripRequestService
	notes        *NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	logger := logging.Discard()
	opts := []Option{WithClock(func() time.Time { return fixedNow }), WithHashCost(bcrypt.MinCost)}
	dispatcher := notify.NewDispatcher(s.Notifications(), logger)

	return &fixture{
		store:        s,
		dispatcher:   dispatcher,
		users:        NewUserService(s.Users(), s.Travelers(), s, logger, opts...),
		travelers:    NewTravelerService(s.Travelers(), s.Users(), s.TripRequests(), s, logger, opts...),
		destinations: NewDestinationService(s.Destinations(), s.TripRequests(), logger, opts...),
		trips:        NewTripRequestService(s.TripRequests(), s.Travelers(), s.Destinations(), dispatcher, logger, opts...),
		notes:        NewNotificationService(s.Notifications()),
	}
}

// register creates a regular user with an active self traveler.
func (f *fixture) register(t *testing.T, name, email string) (types.Actor, types.Traveler) {
	t.Helper()
	ctx := context.Background()
	u, err := f.users.Register(ctx, RegisterInput{
		Name:                 name,
		Email:                email,
		Password:             "password123",
		PasswordConfirmation: "password123",
	})
	require.NoError(t, err)
	traveler, err := f.store.Travelers().FindActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	return u.Actor(), traveler
}

func (f *fixture) admin(t *testing.T) types.Actor {
	t.Helper()
	u, err := f.store.Users().Create(context.Background(), types.User{Name: "Admin", Email: "admin@example.com", IsAdmin: true})
	require.NoError(t, err)
	return u.Actor()
}

func (f *fixture) destination(t *testing.T, city, state, country string) types.Destination {
	t.Helper()
	d, err := f.store.Destinations().Create(context.Background(), types.Destination{City: city, State: state, Country: country})
	require.NoError(t, err)
	return d
}

// trip files a requested trip for actor's own traveler.
func (f *fixture) trip(t *testing.T, actor types.Actor, destinationID int) types.TripRequest {
	t.Helper()
	tr, err := f.trips.Create(context.Background(), actor, CreateTripRequestInput{
		DestinationID: destinationID,
		DepartureAt:   fixedNow.Add(48 * time.Hour),
		ReturnAt:      fixedNow.Add(96 * time.Hour),
	})
	require.NoError(t, err)
	return tr
}

func ptr[T any](v T) *T {
	return &v
}
