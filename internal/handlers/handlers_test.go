package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripdesk/apiserver/internal/auth"
	"github.com/tripdesk/apiserver/internal/logging"
	"github.com/tripdesk/apiserver/internal/notify"
	"github.com/tripdesk/apiserver/internal/services"
	"github.com/tripdesk/apiserver/internal/store/memstore"
	"github.com/tripdesk/apiserver/types"
)

type testServer struct {
	t          *testing.T
	store      *memstore.Store
	issuer     *auth.Issuer
	dispatcher *notify.Dispatcher
	router     http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := memstore.New()
	logger := logging.Discard()
	issuer := auth.NewIssuer("test-secret", time.Hour)
	dispatcher := notify.NewDispatcher(s.Notifications(), logger)
	opts := []services.Option{services.WithHashCost(bcrypt.MinCost)}

	router := NewRouter(Dependencies{
		Users:         services.NewUserService(s.Users(), s.Travelers(), s, logger, opts...),
		Travelers:     services.NewTravelerService(s.Travelers(), s.Users(), s.TripRequests(), s, logger, opts...),
		Destinations:  services.NewDestinationService(s.Destinations(), s.TripRequests(), logger),
		TripRequests:  services.NewTripRequestService(s.TripRequests(), s.Travelers(), s.Destinations(), dispatcher, logger),
		Notifications: services.NewNotificationService(s.Notifications()),
		Issuer:        issuer,
		Revocations:   auth.NewMemoryRevocationList(),
		Pages:         Paginator{DefaultSize: 15, MaxSize: 100},
		Logger:        logger,
	})
	return &testServer{t: t, store: s, issuer: issuer, dispatcher: dispatcher, router: router}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// user creates an account, optionally with an active self traveler, and
// returns a token for it.
func (ts *testServer) user(name, email string, admin, withTraveler bool) (types.User, string) {
	ts.t.Helper()
	ctx := context.Background()
	u, err := ts.store.Users().Create(ctx, types.User{Name: name, Email: email, IsAdmin: admin})
	require.NoError(ts.t, err)
	if withTraveler {
		_, err = ts.store.Travelers().Create(ctx, types.Traveler{UserID: u.ID, Name: name, IsActive: true})
		require.NoError(ts.t, err)
	}
	token, err := ts.issuer.Issue(u)
	require.NoError(ts.t, err)
	return u, token.Value
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func future(d time.Duration) string {
	return time.Now().Add(d).UTC().Format("2006-01-02 15:04:05")
}

func (ts *testServer) createDestination(token, city, state, country string) types.Destination {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/destinations", token, map[string]string{"city": city, "state": state, "country": country})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[types.Destination](ts.t, rec)
}

func (ts *testServer) createTrip(token string, destinationID int) types.TripRequest {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/trip-requests", token, map[string]any{
		"destination_id":     destinationID,
		"departure_datetime": future(48 * time.Hour),
		"return_datetime":    future(72 * time.Hour),
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[types.TripRequest](ts.t, rec)
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/register", "", map[string]string{
		"name":                  "Ana",
		"email":                 "ana@example.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	registered := decode[AuthResponse](t, rec)
	assert.Equal(t, "Bearer", registered.TokenType)
	assert.Equal(t, 3600, registered.ExpiresIn)
	assert.NotEmpty(t, registered.AccessToken)

	rec = ts.do(http.MethodPost, "/login", "", map[string]string{"email": "ana@example.com", "password": "wrong-password"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	failed := decode[ErrorResponse](t, rec)
	require.Len(t, failed.Fields, 1)
	assert.Equal(t, "email", failed.Fields[0].Field)

	rec = ts.do(http.MethodPost, "/login", "", map[string]string{"email": "ANA@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decode[AuthResponse](t, rec).AccessToken

	rec = ts.do(http.MethodGet, "/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, "ana@example.com", me["email"])
	assert.EqualValues(t, 0, me["unread_notifications_count"])
	assert.NotContains(t, me, "password_hash")

	rec = ts.do(http.MethodPost, "/refresh", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	refreshed := decode[AuthResponse](t, rec).AccessToken
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/user", token, nil).Code)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/logout", refreshed, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/user", refreshed, nil).Code)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/register", "", map[string]string{
		"name":                  "",
		"email":                 "not-an-email",
		"password":              "short",
		"password_confirmation": "other",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	fields := map[string]bool{}
	for _, f := range resp.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])
}

func TestRequiresAuthentication(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/trip-requests", "/travelers", "/destinations", "/notifications", "/user"} {
		rec := ts.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/destinations", "garbage", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestAdminCreatesDestination(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.user("Admin", "admin@example.com", true, false)

	rec := ts.do(http.MethodPost, "/destinations", admin, map[string]string{"city": "Curitiba", "state": "PR", "country": "Brasil"})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Curitiba, PR, Brasil", body["full_location"])

	id := int(body["id"].(float64))
	d, err := ts.store.Destinations().Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Curitiba", d.City)
}

func TestNonAdminCannotCreateDestination(t *testing.T) {
	ts := newTestServer(t)
	_, user := ts.user("Ana", "ana@example.com", false, true)

	rec := ts.do(http.MethodPost, "/destinations", user, map[string]string{"city": "Curitiba", "state": "PR", "country": "Brasil"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, total, err := ts.store.Destinations().List(context.Background(), types.DestinationFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateTripWithoutActiveTraveler(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.user("Admin", "admin@example.com", true, false)
	_, user := ts.user("Ana", "ana@example.com", false, false)
	d := ts.createDestination(admin, "Lima", "", "Peru")

	rec := ts.do(http.MethodPost, "/trip-requests", user, map[string]any{
		"destination_id":     d.ID,
		"departure_datetime": future(48 * time.Hour),
		"return_datetime":    future(72 * time.Hour),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no_active_traveler_profile", decode[ErrorResponse](t, rec).Error)
}

func TestCreateTripValidation(t *testing.T) {
	ts := newTestServer(t)
	_, user := ts.user("Ana", "ana@example.com", false, true)

	rec := ts.do(http.MethodPost, "/trip-requests", user, map[string]any{
		"destination_id":     1,
		"departure_datetime": "tomorrow",
		"return_datetime":    future(time.Hour),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, types.FieldError{Field: "departure_datetime", Rule: "date", Message: "departure_datetime is not a valid date"}, resp.Fields[0])

	rec = ts.do(http.MethodPost, "/trip-requests", user, map[string]any{})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Len(t, decode[ErrorResponse](t, rec).Fields, 3)
}

func TestAdminApprovesTrip(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.user("Admin", "admin@example.com", true, false)
	_, user := ts.user("Ana", "ana@example.com", false, true)
	d := ts.createDestination(admin, "Curitiba", "PR", "Brasil")
	tr := ts.createTrip(user, d.ID)

	rec := ts.do(http.MethodPatch, "/trip-requests/"+itoa(tr.ID)+"/status", user, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPatch, "/trip-requests/"+itoa(tr.ID)+"/status", admin, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.TripStatusApproved, decode[types.TripRequest](t, rec).Status)
	ts.dispatcher.Wait()

	rec = ts.do(http.MethodGet, "/notifications", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[ListResponse[types.UserNotification]](t, rec)
	require.Equal(t, 1, notes.Total)
	assert.Contains(t, notes.Items[0].Message, "approved")

	rec = ts.do(http.MethodPatch, "/notifications/"+itoa(notes.Items[0].ID)+"/check", admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(http.MethodPatch, "/notifications/"+itoa(notes.Items[0].ID)+"/check", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[types.UserNotification](t, rec).IsChecked)

	rec = ts.do(http.MethodGet, "/notifications?unchecked=true", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[ListResponse[types.UserNotification]](t, rec).Total)
}

func TestOwnerCannotEditApprovedTrip(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.user("Admin", "admin@example.com", true, false)
	_, user := ts.user("Ana", "ana@example.com", false, true)
	d := ts.createDestination(admin, "Lima", "", "Peru")
	tr := ts.createTrip(user, d.ID)
	path := "/trip-requests/" + itoa(tr.ID)

	rec := ts.do(http.MethodPut, path, user, map[string]string{"description": "first draft"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Equal(t, http.StatusOK, ts.do(http.MethodPatch, path+"/status", admin, map[string]string{"status": "approved"}).Code)
	ts.dispatcher.Wait()

	rec = ts.do(http.MethodPatch, path, user, map[string]string{"description": "changed"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_state_transition", decode[ErrorResponse](t, rec).Error)

	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodDelete, path, user, nil).Code)

	rec = ts.do(http.MethodGet, path, user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "first draft", decode[types.TripRequest](t, rec).Description)
}

func TestNullDescriptionClearsTrip(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.user("Admin", "admin@example.com", true, false)
	_, user := ts.user("Ana", "ana@example.com", false, true)
	d := ts.createDestination(admin, "Lima", "", "Peru")
	tr := ts.createTrip(user, d.ID)
	path := "/trip-requests/" + itoa(tr.ID)

	rec := ts.do(http.MethodPatch, path, user, map[string]any{"description": "window seat"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "window seat", decode[types.TripRequest](t, rec).Description)

	rec = ts.do(http.MethodPatch, path, user, map[string]any{"destination_id": d.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "window seat", decode[types.TripRequest](t, rec).Description)

	rec = ts.do(http.MethodPatch, path, user, map[string]any{"description": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[types.TripRequest](t, rec).Description)
}

func TestWrongJSONTypeIsFieldError(t *testing.T) {
	ts := newTestServer(t)
	_, user := ts.user("Ana", "ana@example.com", false, true)

	rec := ts.do(http.MethodPost, "/trip-requests", user, map[string]any{
		"destination_id":     "abc",
		"departure_datetime": future(48 * time.Hour),
		"return_datetime":    future(72 * time.Hour),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation_failed", resp.Error)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "destination_id", resp.Fields[0].Field)
	assert.Equal(t, "type", resp.Fields[0].Rule)

	rec = ts.do(http.MethodPost, "/trip-requests", user, map[string]any{"description": 42})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp = decode[ErrorResponse](t, rec)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "description", resp.Fields[0].Field)
}

func TestTripAccessControl(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.user("Admin", "admin@example.com", true, false)
	_, ana := ts.user("Ana", "ana@example.com", false, true)
	_, bob := ts.user("Bob", "bob@example.com", false, true)
	d := ts.createDestination(admin, "Lima", "", "Peru")
	tr := ts.createTrip(ana, d.ID)
	ts.createTrip(bob, d.ID)
	path := "/trip-requests/" + itoa(tr.ID)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, path, bob, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, path, bob, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, path, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/trip-requests/9999", ana, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/trip-requests/abc", ana, nil).Code)

	rec := ts.do(http.MethodGet, "/trip-requests?traveler_id="+itoa(tr.TravelerID+1), ana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[ListResponse[types.TripRequest]](t, rec).Total)

	rec = ts.do(http.MethodGet, "/trip-requests?all=true", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[ListResponse[types.TripRequest]](t, rec).Total)

	rec = ts.do(http.MethodGet, "/trip-requests?status=shipped", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, path, ana, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, path, ana, nil).Code)
}

func TestDestinationDeleteGuard(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.user("Admin", "admin@example.com", true, false)
	_, user := ts.user("Ana", "ana@example.com", false, true)
	used := ts.createDestination(admin, "Lima", "", "Peru")
	unused := ts.createDestination(admin, "Quito", "", "Ecuador")
	ts.createTrip(user, used.ID)

	rec := ts.do(http.MethodDelete, "/destinations/"+itoa(used.ID), admin, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "has_dependents", resp.Error)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 1, *resp.Count)

	rec = ts.do(http.MethodGet, "/destinations/"+itoa(used.ID), user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["trip_requests_count"])

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/destinations/"+itoa(unused.ID), admin, nil).Code)

	rec = ts.do(http.MethodGet, "/destinations/countries", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Peru"}, decode[[]string](t, rec))
}

func TestTravelerDeactivationGuard(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.user("Admin", "admin@example.com", true, false)
	ana, user := ts.user("Ana", "ana@example.com", false, true)
	d := ts.createDestination(admin, "Lima", "", "Peru")
	ts.createTrip(user, d.ID)
	ts.createTrip(user, d.ID)
	approved := ts.createTrip(user, d.ID)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPatch, "/trip-requests/"+itoa(approved.ID)+"/status", admin, map[string]string{"status": "approved"}).Code)
	ts.dispatcher.Wait()

	traveler, err := ts.store.Travelers().FindActiveByUser(context.Background(), ana.ID)
	require.NoError(t, err)
	path := "/travelers/" + itoa(traveler.ID)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, path, user, nil).Code)

	rec := ts.do(http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "has_pending_dependents", resp.Error)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 2, *resp.Count)

	rec = ts.do(http.MethodGet, path, user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[types.Traveler](t, rec).IsActive)
}

func TestTravelerAdminLifecycle(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.user("Admin", "admin@example.com", true, false)

	rec := ts.do(http.MethodPost, "/travelers", admin, map[string]any{
		"name":                  "Carla",
		"email":                 "carla@example.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[types.Traveler](t, rec)
	path := "/travelers/" + itoa(created.ID)

	rec = ts.do(http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[types.Traveler](t, rec).IsActive)

	rec = ts.do(http.MethodGet, "/travelers?is_active=false", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[ListResponse[types.Traveler]](t, rec).Total)

	rec = ts.do(http.MethodPatch, path+"/restore", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[types.Traveler](t, rec).IsActive)

	rec = ts.do(http.MethodPost, "/login", "", map[string]string{"email": "carla@example.com", "password": "password123"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPagination(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.user("Admin", "admin@example.com", true, false)
	for _, city := range []string{"Lima", "Cusco", "Arequipa"} {
		ts.createDestination(admin, city, "", "Peru")
	}

	rec := ts.do(http.MethodGet, "/destinations?per_page=2&page=2", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[ListResponse[types.Destination]](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.PerPage)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Lima", page.Items[0].City)

	rec = ts.do(http.MethodGet, "/destinations?page=0", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
