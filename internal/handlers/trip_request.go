package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tripdesk/apiserver/internal/services"
	"github.com/tripdesk/apiserver/types"
)

const tripRequestIDParam = "tripRequestID"

// TripRequestHandler provides HTTP handlers for trip requests.
type TripRequestHandler struct {
	trips  *services.TripRequestService
	pages  Paginator
	logger *slog.Logger
}

func NewTripRequestHandler(trips *services.TripRequestService, pages Paginator, logger *slog.Logger) *TripRequestHandler {
	return &TripRequestHandler{trips: trips, pages: pages, logger: logger}
}

// Routes registers trip request routes. Callers mount them behind RequireAuth.
func (h *TripRequestHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{"+tripRequestIDParam+"}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Patch("/", h.Update)
		r.Delete("/", h.Cancel)
		r.Put("/status", h.ChangeStatus)
		r.Patch("/status", h.ChangeStatus)
	})
}

func (h *TripRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return
	}

	v := &types.ValidationError{}
	q := r.URL.Query()
	filter := types.TripRequestFilter{
		Search:        strings.TrimSpace(q.Get("search")),
		Destination:   strings.TrimSpace(q.Get("destination")),
		DestinationID: queryInt(r, v, "destination_id"),
		TravelerID:    queryInt(r, v, "traveler_id"),
		StartDate:     queryDate(r, v, "start_date", false),
		EndDate:       queryDate(r, v, "end_date", true),
		Page:          h.pages.parse(r, v),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := types.ParseTripStatus(raw)
		if !ok {
			v.Add("status", "in", "status must be one of: requested, approved, cancelled")
		}
		filter.Status = status
	}
	if err := v.OrNil(); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	items, total, err := h.trips.List(r.Context(), actor, filter)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, filter.Page, total))
}

func (h *TripRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	tr, err := h.trips.Get(r.Context(), actor, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (h *TripRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return
	}

	var req TripRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v := &types.ValidationError{}
	departure := timestampField(v, "departure_datetime", req.DepartureAt)
	ret := timestampField(v, "return_datetime", req.ReturnAt)
	if err := v.OrNil(); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	in := services.CreateTripRequestInput{TravelerID: req.TravelerID}
	if req.DestinationID != nil {
		in.DestinationID = *req.DestinationID
	}
	if req.Description.Set {
		in.Description = req.Description.Value
	}
	if departure != nil {
		in.DepartureAt = *departure
	}
	if ret != nil {
		in.ReturnAt = *ret
	}

	created, err := h.trips.Create(r.Context(), actor, in)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TripRequestHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req TripRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v := &types.ValidationError{}
	patch := types.TripRequestPatch{
		DestinationID: req.DestinationID,
		Description:   req.Description.Ptr(),
		DepartureAt:   timestampField(v, "departure_datetime", req.DepartureAt),
		ReturnAt:      timestampField(v, "return_datetime", req.ReturnAt),
	}
	if err := v.OrNil(); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	updated, err := h.trips.Update(r.Context(), actor, id, patch)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Cancel removes a requested trip on behalf of its owner.
func (h *TripRequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.trips.Cancel(r.Context(), actor, id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TripRequestHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.trips.ChangeStatus(r.Context(), actor, id, req.Status)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *TripRequestHandler) target(w http.ResponseWriter, r *http.Request) (types.Actor, int, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return types.Actor{}, 0, false
	}
	id, err := parseID(r, tripRequestIDParam)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return types.Actor{}, 0, false
	}
	return actor, id, true
}

// TripRequestRequest is the body of a create or update. Timestamps are kept
// raw so format errors are reported per field.
type TripRequestRequest struct {
	TravelerID    *int    `json:"traveler_id"`
	DestinationID *int    `json:"destination_id"`
	Description   optionalString `json:"description"`
	DepartureAt   *string `json:"departure_datetime"`
	ReturnAt      *string `json:"return_datetime"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

