package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tripdesk/apiserver/internal/auth"
	"github.com/tripdesk/apiserver/internal/metrics"
	"github.com/tripdesk/apiserver/internal/services"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Users         *services.UserService
	Travelers     *services.TravelerService
	Destinations  *services.DestinationService
	TripRequests  *services.TripRequestService
	Notifications *services.NotificationService

	Issuer      *auth.Issuer
	Revocations auth.RevocationList

	Pages   Paginator
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter builds the chi router with every route registered.
func NewRouter(deps Dependencies) *chi.Mux {
	authHandler := NewAuthHandler(deps.Users, deps.Notifications, deps.Issuer, deps.Revocations, deps.Metrics, deps.Logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		AccessLog(deps.Logger, deps.Metrics),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	router.Get("/healthz", Healthz)
	if deps.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler.Routes(router)
	router.Group(func(r chi.Router) {
		r.Use(authHandler.RequireAuth)
		r.Route("/trip-requests", NewTripRequestHandler(deps.TripRequests, deps.Pages, deps.Logger).Routes)
		r.Route("/travelers", NewTravelerHandler(deps.Travelers, deps.Pages, deps.Logger).Routes)
		r.Route("/destinations", NewDestinationHandler(deps.Destinations, deps.Pages, deps.Logger).Routes)
		r.Route("/notifications", NewNotificationHandler(deps.Notifications, deps.Pages, deps.Logger).Routes)
	})
	return router
}
