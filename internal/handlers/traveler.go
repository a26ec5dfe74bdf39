package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tripdesk/apiserver/internal/services"
	"github.com/tripdesk/apiserver/types"
)

const travelerIDParam = "travelerID"

// TravelerHandler provides HTTP handlers for traveler profiles.
type TravelerHandler struct {
	travelers *services.TravelerService
	pages     Paginator
	logger    *slog.Logger
}

func NewTravelerHandler(travelers *services.TravelerService, pages Paginator, logger *slog.Logger) *TravelerHandler {
	return &TravelerHandler{travelers: travelers, pages: pages, logger: logger}
}

func (h *TravelerHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{"+travelerIDParam+"}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Patch("/", h.Update)
		r.Delete("/", h.Deactivate)
		r.Patch("/restore", h.Restore)
		r.Put("/restore", h.Restore)
	})
}

func (h *TravelerHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return
	}

	v := &types.ValidationError{}
	filter := types.TravelerFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   h.pages.parse(r, v),
	}
	if raw := r.URL.Query().Get("is_active"); strings.TrimSpace(raw) != "" {
		active, ok := parseBool(raw)
		if !ok {
			v.Add("is_active", "boolean", "is_active must be true or false")
		} else {
			filter.IsActive = &active
		}
	}
	if err := v.OrNil(); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	items, total, err := h.travelers.List(r.Context(), actor, filter)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, filter.Page, total))
}

func (h *TravelerHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	t, err := h.travelers.Get(r.Context(), actor, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TravelerHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return
	}
	var req TravelerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.travelers.Create(r.Context(), actor, req.input())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TravelerHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req TravelerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.travelers.Update(r.Context(), actor, id, req.input())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Deactivate answers DELETE; travelers are never removed.
func (h *TravelerHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	t, err := h.travelers.Deactivate(r.Context(), actor, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TravelerHandler) Restore(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	t, err := h.travelers.Restore(r.Context(), actor, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TravelerHandler) target(w http.ResponseWriter, r *http.Request) (types.Actor, int, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return types.Actor{}, 0, false
	}
	id, err := parseID(r, travelerIDParam)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return types.Actor{}, 0, false
	}
	return actor, id, true
}

type TravelerRequest struct {
	Name                 *string `json:"name"`
	Email                *string `json:"email"`
	Password             *string `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation"`
	IsAdmin              *bool   `json:"is_admin"`
	IsActive             *bool   `json:"is_active"`
}

func (req TravelerRequest) input() services.TravelerInput {
	return services.TravelerInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		IsAdmin:              req.IsAdmin,
		IsActive:             req.IsActive,
	}
}
