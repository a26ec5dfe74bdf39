package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tripdesk/apiserver/internal/auth"
	"github.com/tripdesk/apiserver/internal/metrics"
	"github.com/tripdesk/apiserver/internal/services"
	"github.com/tripdesk/apiserver/types"
)

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	users       *services.UserService
	notes       *services.NotificationService
	issuer      *auth.Issuer
	revocations auth.RevocationList
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(
	users *services.UserService,
	notes *services.NotificationService,
	issuer *auth.Issuer,
	revocations auth.RevocationList,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:       users,
		notes:       notes,
		issuer:      issuer,
		revocations: revocations,
		metrics:     m,
		logger:      logger,
	}
}

// Routes registers the public auth routes and, behind requireAuth, the
// session routes.
func (h *AuthHandler) Routes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Post("/logout", h.Logout)
		r.Post("/refresh", h.Refresh)
		r.Get("/user", h.Me)
	})
}

// RequireAuth enforces a valid, unrevoked bearer token and injects the actor
// into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := auth.BearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}

		claims, err := h.issuer.Parse(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}

		revoked, err := h.revocations.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "revocation lookup failed", "jti", claims.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		if revoked {
			writeError(w, http.StatusUnauthorized, "unauthenticated", auth.ErrRevokedToken.Error())
			return
		}

		actor, _ := claims.Actor()
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), claims, actor)))
	})
}

// Register creates a user with its own traveler profile and signs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), services.RegisterInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	h.respondWithToken(w, r, http.StatusCreated, user)
}

// Login verifies credentials and returns an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, types.ErrInvalidCredentials) {
			h.logger.InfoContext(r.Context(), "login rejected", "email", types.NormalizeEmail(req.Email))
		}
		writeDomainError(w, r, h.logger, err)
		return
	}
	h.respondWithToken(w, r, http.StatusOK, user)
}

// Logout revokes the presented token for the rest of its lifetime.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.revokeCurrent(r); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

// Refresh revokes the presented token and issues a new one with fresh claims.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return
	}
	user, err := h.users.GetByID(r.Context(), actor.ID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
			return
		}
		writeDomainError(w, r, h.logger, err)
		return
	}
	if err := h.revokeCurrent(r); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	h.respondWithToken(w, r, http.StatusOK, user)
}

// Me returns the authenticated user with its unread notification count.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return
	}

	user, err := h.users.GetByID(r.Context(), actor.ID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
			return
		}
		writeDomainError(w, r, h.logger, err)
		return
	}

	unread, err := h.notes.UnreadCount(r.Context(), actor)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: user, UnreadNotificationsCount: unread})
}

func (h *AuthHandler) revokeCurrent(r *http.Request) error {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		return auth.ErrMissingToken
	}
	if err := h.revocations.Revoke(r.Context(), claims.ID, claims.Remaining(time.Now())); err != nil {
		return err
	}
	h.metrics.IncrementTokenRevocations()
	return nil
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user types.User) {
	token, err := h.issuer.Issue(user)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, AuthResponse{
		User:        user,
		AccessToken: token.Value,
		TokenType:   "Bearer",
		ExpiresIn:   int(token.TTL.Seconds()),
	})
}

type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User        types.User `json:"user"`
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
}

type MeResponse struct {
	types.User
	UnreadNotificationsCount int `json:"unread_notifications_count"`
}
