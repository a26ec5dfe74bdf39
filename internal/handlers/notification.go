package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tripdesk/apiserver/internal/services"
	"github.com/tripdesk/apiserver/types"
)

const notificationIDParam = "notificationID"

// NotificationHandler serves the authenticated user's notifications.
type NotificationHandler struct {
	notes  *services.NotificationService
	pages  Paginator
	logger *slog.Logger
}

func NewNotificationHandler(notes *services.NotificationService, pages Paginator, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notes: notes, pages: pages, logger: logger}
}

func (h *NotificationHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Patch("/{"+notificationIDParam+"}/check", h.Check)
	r.Put("/{"+notificationIDParam+"}/check", h.Check)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return
	}

	v := &types.ValidationError{}
	filter := types.NotificationFilter{Page: h.pages.parse(r, v)}
	filter.UncheckedOnly, _ = parseBool(r.URL.Query().Get("unchecked"))
	if err := v.OrNil(); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	items, total, err := h.notes.List(r.Context(), actor, filter)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, filter.Page, total))
}

// Check marks one of the actor's notifications as read.
func (h *NotificationHandler) Check(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return
	}
	id, err := parseID(r, notificationIDParam)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	n, err := h.notes.Check(r.Context(), actor, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
