package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tripdesk/apiserver/internal/auth"
	"github.com/tripdesk/apiserver/types"
)

type contextKey string

const (
	contextActorKey  contextKey = "actor"
	contextClaimsKey contextKey = "claims"
)

func withActor(ctx context.Context, claims auth.Claims, actor types.Actor) context.Context {
	ctx = context.WithValue(ctx, contextClaimsKey, claims)
	return context.WithValue(ctx, contextActorKey, actor)
}

// actorFromContext returns the authenticated actor set by RequireAuth.
func actorFromContext(ctx context.Context) (types.Actor, bool) {
	actor, ok := ctx.Value(contextActorKey).(types.Actor)
	return actor, ok && actor.ID > 0
}

func claimsFromContext(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(contextClaimsKey).(auth.Claims)
	return claims, ok
}

// ErrorResponse is the error payload of every failed request.
type ErrorResponse struct {
	Error   string             `json:"error"`
	Message string             `json:"message,omitempty"`
	Fields  []types.FieldError `json:"fields,omitempty"`
	Count   *int               `json:"count,omitempty"`
}

// ListResponse wraps one page of a list endpoint.
type ListResponse[T any] struct {
	Items   []T `json:"items"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

func newListResponse[T any](items []T, page types.Page, total int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	resp := ListResponse[T]{Items: items, Page: page.Number, PerPage: page.Size, Total: total}
	if page.All {
		resp.Page = 1
		resp.PerPage = total
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeDomainError translates service errors into responses. Anything that is
// not part of the domain taxonomy is logged and reported as a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		validation *types.ValidationError
		transition *types.InvalidStateTransitionError
		dependents *types.HasDependentsError
		pending    *types.HasPendingDependentsError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_failed",
			Message: "the given data was invalid",
			Fields:  validation.Fields,
		})
	case errors.Is(err, types.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden", "this action is unauthorized")
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.As(err, &transition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_state_transition", transition.Error())
	case errors.As(err, &dependents):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "has_dependents",
			Message: dependents.Error(),
			Count:   &dependents.Count,
		})
	case errors.As(err, &pending):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "has_pending_dependents",
			Message: pending.Error(),
			Count:   &pending.Count,
		})
	case errors.Is(err, types.ErrNoActiveTravelerProfile):
		writeError(w, http.StatusUnprocessableEntity, "no_active_traveler_profile", err.Error())
	case errors.Is(err, types.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_failed",
			Message: err.Error(),
			Fields:  []types.FieldError{{Field: "email", Rule: "credentials", Message: err.Error()}},
		})
	case errors.Is(err, types.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSON decodes the request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if i := strings.LastIndex(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if field == "" {
			field = "body"
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_failed",
			Message: "the given data was invalid",
			Fields:  types.NewFieldError(field, "type", field+" must be of type "+typeErr.Type.String()).Fields,
		})
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
	return false
}

// optionalString tells an absent field apart from an explicit null, which
// clears the value.
type optionalString struct {
	Set   bool
	Value string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Ptr returns nil when the field was absent.
func (o optionalString) Ptr() *string {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

func parseID(r *http.Request, param string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil || id < 1 {
		return 0, types.ErrNotFound
	}
	return id, nil
}

// Paginator parses page, per_page and all.
type Paginator struct {
	DefaultSize int
	MaxSize     int
}

func (p Paginator) parse(r *http.Request, v *types.ValidationError) types.Page {
	q := r.URL.Query()
	page := types.Page{Number: 1, Size: p.DefaultSize}
	if page.Size < 1 {
		page.Size = 15
	}

	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			v.Add("page", "integer", "page must be a positive integer")
		} else {
			page.Number = n
		}
	}
	if raw := strings.TrimSpace(q.Get("per_page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			v.Add("per_page", "integer", "per_page must be a positive integer")
		} else {
			page.Size = n
		}
	}
	if p.MaxSize > 0 && page.Size > p.MaxSize {
		page.Size = p.MaxSize
	}
	if all, ok := parseBool(q.Get("all")); ok {
		page.All = all
	}
	return page
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// queryInt records a field error when a supplied value is not a positive id.
func queryInt(r *http.Request, v *types.ValidationError, name string) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		v.Add(name, "integer", name+" must be a positive integer")
		return 0
	}
	return n
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

const dateLayout = "2006-01-02"

// parseTimestamp accepts RFC 3339 and the "Y-m-d H:i:s" form used by the web
// front end. Values without a zone are read as UTC.
func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// timestampField parses an optional body timestamp.
func timestampField(v *types.ValidationError, field string, raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	if strings.TrimSpace(*raw) == "" {
		t := time.Time{}
		return &t
	}
	t, ok := parseTimestamp(*raw)
	if !ok {
		v.Add(field, "date", field+" is not a valid date")
		return nil
	}
	return &t
}

// queryDate parses a date filter. A bare end date covers the whole day.
func queryDate(r *http.Request, v *types.ValidationError, name string, endOfDay bool) *time.Time {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	if d, err := time.Parse(dateLayout, raw); err == nil {
		if endOfDay {
			d = d.Add(24*time.Hour - time.Nanosecond)
		}
		return &d
	}
	t, ok := parseTimestamp(raw)
	if !ok {
		v.Add(name, "date", name+" is not a valid date")
		return nil
	}
	return &t
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
