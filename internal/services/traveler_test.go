package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripdesk/apiserver/internal/logging"
	"github.com/tripdesk/apiserver/types"
)

func TestTravelerManagementRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ana, traveler := f.register(t, "Ana", "ana@example.com")
	ctx := context.Background()

	_, err := f.travelers.Create(ctx, ana, TravelerInput{Name: ptr("Dependent")})
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = f.travelers.Update(ctx, ana, traveler.ID, TravelerInput{Name: ptr("Renamed")})
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = f.travelers.Deactivate(ctx, ana, traveler.ID)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = f.travelers.Restore(ctx, ana, traveler.ID)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestGetTraveler(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	ana, traveler := f.register(t, "Ana", "ana@example.com")
	bob, _ := f.register(t, "Bob", "bob@example.com")
	ctx := context.Background()

	got, err := f.travelers.Get(ctx, ana, traveler.ID)
	require.NoError(t, err)
	require.NotNil(t, got.User)
	assert.Equal(t, "ana@example.com", got.User.Email)

	_, err = f.travelers.Get(ctx, admin, traveler.ID)
	assert.NoError(t, err)
	_, err = f.travelers.Get(ctx, bob, traveler.ID)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestCreateTravelerCreatesUser(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	ctx := context.Background()

	created, err := f.travelers.Create(ctx, admin, TravelerInput{
		Name:                 ptr("Carla"),
		Email:                ptr("Carla@Example.com"),
		Password:             ptr("password123"),
		PasswordConfirmation: ptr("password123"),
		IsAdmin:              ptr(true),
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	user, err := f.store.Users().GetByID(ctx, created.UserID)
	require.NoError(t, err)
	assert.Equal(t, "carla@example.com", user.Email)
	assert.True(t, user.IsAdmin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestCreateTravelerDuplicateEmailCommitsNothing(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	f.register(t, "Ana", "ana@example.com")
	ctx := context.Background()

	_, err := f.travelers.Create(ctx, admin, TravelerInput{
		Name:                 ptr("Other Ana"),
		Email:                ptr("ANA@example.com"),
		Password:             ptr("password123"),
		PasswordConfirmation: ptr("password123"),
	})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unique", verr.Fields[0].Rule)

	_, total, err := f.travelers.List(ctx, admin, types.TravelerFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestUpdateTravelerIsAtomic(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	f.register(t, "Ana", "ana@example.com")
	_, bobTraveler := f.register(t, "Bob", "bob@example.com")
	ctx := context.Background()

	// The email clash fails the user half; the name must not change either.
	_, err := f.travelers.Update(ctx, admin, bobTraveler.ID, TravelerInput{
		Name:  ptr("Robert"),
		Email: ptr("ana@example.com"),
	})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)

	stored, err := f.travelers.Get(ctx, admin, bobTraveler.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", stored.Name)
	assert.Equal(t, "bob@example.com", stored.User.Email)

	updated, err := f.travelers.Update(ctx, admin, bobTraveler.ID, TravelerInput{Name: ptr("Robert"), IsAdmin: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, "Robert", updated.Name)
	assert.Equal(t, "Robert", updated.User.Name)
	assert.True(t, updated.User.IsAdmin)
}

func TestDeactivateTravelerGuard(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	ana, traveler := f.register(t, "Ana", "ana@example.com")
	d := f.destination(t, "Lima", "", "Peru")
	ctx := context.Background()

	f.trip(t, ana, d.ID)
	f.trip(t, ana, d.ID)
	approved := f.trip(t, ana, d.ID)
	_, err := f.trips.ChangeStatus(ctx, admin, approved.ID, "approved")
	require.NoError(t, err)
	f.dispatcher.Wait()

	_, err = f.travelers.Deactivate(ctx, admin, traveler.ID)
	var pending *types.HasPendingDependentsError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, 2, pending.Count)

	stored, err := f.travelers.Get(ctx, admin, traveler.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)

	// The same guard applies when is_active is cleared through an update.
	_, err = f.travelers.Update(ctx, admin, traveler.ID, TravelerInput{Name: ptr("Ana Maria"), IsActive: ptr(false)})
	require.ErrorAs(t, err, &pending)
	stored, err = f.travelers.Get(ctx, admin, traveler.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", stored.Name)
	assert.True(t, stored.IsActive)
}

func TestDeactivateTravelerWithOnlySettledTrips(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	ana, traveler := f.register(t, "Ana", "ana@example.com")
	d := f.destination(t, "Lima", "", "Peru")
	ctx := context.Background()

	tr := f.trip(t, ana, d.ID)
	_, err := f.trips.ChangeStatus(ctx, admin, tr.ID, "cancelled")
	require.NoError(t, err)
	f.dispatcher.Wait()

	deactivated, err := f.travelers.Deactivate(ctx, admin, traveler.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	restored, err := f.travelers.Restore(ctx, admin, traveler.ID)
	require.NoError(t, err)
	assert.True(t, restored.IsActive)

	_, err = f.travelers.Restore(ctx, admin, traveler.ID+100)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListTravelersScopesNonAdmins(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	ana, _ := f.register(t, "Ana", "ana@example.com")
	f.register(t, "Bob", "bob@example.com")
	ctx := context.Background()

	travelers, total, err := f.travelers.List(ctx, ana, types.TravelerFilter{Search: "bob"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, travelers)

	_, total, err = f.travelers.List(ctx, admin, types.TravelerFilter{Search: "BOB@"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

// drainedCounter reports no trips, as if every blocking trip had been
// cancelled right after the guarded write refused.
type drainedCounter struct{}

func (drainedCounter) CountByTraveler(context.Context, int, types.TripStatus) (int, error) {
	return 0, nil
}

func (drainedCounter) CountByDestination(context.Context, int) (int, error) {
	return 0, nil
}

func TestDeactivateTravelerReportsCountFromGuard(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	ana, traveler := f.register(t, "Ana", "ana@example.com")
	d := f.destination(t, "Lima", "", "Peru")
	f.trip(t, ana, d.ID)
	f.trip(t, ana, d.ID)

	svc := NewTravelerService(f.store.Travelers(), f.store.Users(), drainedCounter{}, f.store, logging.Discard(),
		WithHashCost(bcrypt.MinCost))

	_, err := svc.Deactivate(context.Background(), admin, traveler.ID)
	var pending *types.HasPendingDependentsError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, 2, pending.Count)
}
