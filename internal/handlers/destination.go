package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tripdesk/apiserver/internal/services"
	"github.com/tripdesk/apiserver/types"
)

const destinationIDParam = "destinationID"

// DestinationHandler provides HTTP handlers for the destination catalog.
type DestinationHandler struct {
	destinations *services.DestinationService
	pages        Paginator
	logger       *slog.Logger
}

func NewDestinationHandler(destinations *services.DestinationService, pages Paginator, logger *slog.Logger) *DestinationHandler {
	return &DestinationHandler{destinations: destinations, pages: pages, logger: logger}
}

func (h *DestinationHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/countries", h.Countries)
	r.Get("/states", h.States)
	r.Route("/{"+destinationIDParam+"}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
	})
}

func (h *DestinationHandler) List(w http.ResponseWriter, r *http.Request) {
	v := &types.ValidationError{}
	q := r.URL.Query()
	filter := types.DestinationFilter{
		Search:  strings.TrimSpace(q.Get("search")),
		Country: strings.TrimSpace(q.Get("country")),
		State:   strings.TrimSpace(q.Get("state")),
		Page:    h.pages.parse(r, v),
	}
	if err := v.OrNil(); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	items, total, err := h.destinations.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, filter.Page, total))
}

func (h *DestinationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, destinationIDParam)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	d, err := h.destinations.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DestinationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return
	}
	var req types.DestinationPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.destinations.Create(r.Context(), actor, req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *DestinationHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req types.DestinationPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.destinations.Update(r.Context(), actor, id, req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *DestinationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.destinations.Delete(r.Context(), actor, id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DestinationHandler) Countries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.destinations.Countries(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, countries)
}

func (h *DestinationHandler) States(w http.ResponseWriter, r *http.Request) {
	states, err := h.destinations.States(r.Context(), strings.TrimSpace(r.URL.Query().Get("country")))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (h *DestinationHandler) target(w http.ResponseWriter, r *http.Request) (types.Actor, int, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return types.Actor{}, 0, false
	}
	id, err := parseID(r, destinationIDParam)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return types.Actor{}, 0, false
	}
	return actor, id, true
}
