package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/apiserver/internal/store"
	"github.com/tripdesk/apiserver/types"
)

func seed(t *testing.T, s *Store) (types.User, types.Traveler, types.Destination) {
	t.Helper()
	ctx := context.Background()
	u, err := s.Users().Create(ctx, types.User{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	tr, err := s.Travelers().Create(ctx, types.Traveler{UserID: u.ID, Name: "Ana", IsActive: true})
	require.NoError(t, err)
	d, err := s.Destinations().Create(ctx, types.Destination{City: "Curitiba", State: "PR", Country: "Brasil"})
	require.NoError(t, err)
	return u, tr, d
}

func TestRunInTxRestoresOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.Users().Create(ctx, types.User{Name: "Tx", Email: "tx@example.com"})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Users().GetByEmail(ctx, "tx@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunInTxKeepsConcurrentWritesOnRollback(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, _, _ := seed(t, s)
	boom := errors.New("boom")

	written := make(chan types.UserNotification, 1)
	err := s.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.Users().Create(txCtx, types.User{Name: "Tx", Email: "tx@example.com"})
		require.NoError(t, err)

		go func() {
			n, err := s.Notifications().Create(ctx, types.UserNotification{UserID: u.ID, Message: "hello"})
			assert.NoError(t, err)
			written <- n
		}()

		// Staged writes are invisible outside the transaction.
		_, err = s.Users().GetByEmail(ctx, "tx@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var note types.UserNotification
	select {
	case note = <-written:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent write did not complete")
	}

	got, err := s.Notifications().Get(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Message)

	_, err = s.Users().GetByEmail(ctx, "tx@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunInTxCommitsStagedWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.Users().Create(ctx, types.User{Name: "Tx", Email: "tx@example.com"})
		if err != nil {
			return err
		}
		_, err = s.Travelers().Create(ctx, types.Traveler{UserID: u.ID, Name: "Tx", IsActive: true})
		return err
	})
	require.NoError(t, err)

	u, err := s.Users().GetByEmail(ctx, "tx@example.com")
	require.NoError(t, err)
	_, err = s.Travelers().FindActiveByUser(ctx, u.ID)
	assert.NoError(t, err)
}

func TestGuardsReportBlockingCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, traveler, dest := seed(t, s)

	departure := time.Now().Add(24 * time.Hour)
	for _, status := range []types.TripStatus{types.TripStatusRequested, types.TripStatusRequested, types.TripStatusApproved} {
		_, err := s.TripRequests().Create(ctx, types.TripRequest{
			TravelerID:    traveler.ID,
			DestinationID: dest.ID,
			DepartureAt:   departure,
			ReturnAt:      departure.Add(time.Hour),
			Status:        status,
		})
		require.NoError(t, err)
	}

	_, err := s.Travelers().Deactivate(ctx, traveler.ID)
	count, ok := store.BlockingCount(err)
	require.True(t, ok)
	assert.Equal(t, 2, count)

	count, ok = store.BlockingCount(s.Destinations().Delete(ctx, dest.ID))
	require.True(t, ok)
	assert.Equal(t, 3, count)
}

func TestDuplicateEmailIsCaseInsensitive(t *testing.T) {
	s := New()
	seed(t, s)
	_, err := s.Users().Create(context.Background(), types.User{Name: "Other", Email: "ANA@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func TestTripRequestConditionalWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, traveler, dest := seed(t, s)

	departure := time.Now().Add(24 * time.Hour)
	tr, err := s.TripRequests().Create(ctx, types.TripRequest{
		TravelerID:    traveler.ID,
		DestinationID: dest.ID,
		DepartureAt:   departure,
		ReturnAt:      departure.Add(time.Hour),
		Status:        types.TripStatusRequested,
	})
	require.NoError(t, err)
	assert.Equal(t, u.ID, tr.OwnerID)

	_, err = s.TripRequests().UpdateStatus(ctx, tr.ID, types.TripStatusRequested, types.TripStatusApproved)
	require.NoError(t, err)

	_, err = s.TripRequests().UpdateStatus(ctx, tr.ID, types.TripStatusRequested, types.TripStatusCancelled)
	assert.ErrorIs(t, err, store.ErrStatusMismatch)
	assert.ErrorIs(t, s.TripRequests().Delete(ctx, tr.ID, types.TripStatusRequested), store.ErrStatusMismatch)

	assert.ErrorIs(t, s.Destinations().Delete(ctx, dest.ID), store.ErrReferenced)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, total := paginate(items, types.Page{Number: 2, Size: 2})
	assert.Equal(t, []int{3, 4}, page)
	assert.Equal(t, 5, total)

	page, _ = paginate(items, types.Page{Number: 4, Size: 2})
	assert.Empty(t, page)

	page, _ = paginate(items, types.Page{Number: 1, Size: 2, All: true})
	assert.Len(t, page, 5)
}
