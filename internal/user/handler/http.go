package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"synq/backend/internal/identity/service"
	"synq/backend/internal/logging"
	"synq/backend/internal/platform/httpx"
	"synq/backend/internal/session"
	"synq/backend/internal/user/domain"
)

// UserResponse is the public JSON shape of a user. Challenge state is never exposed.
type UserResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
}

// NewUserResponse maps a domain user to its JSON shape.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		CreatedAt:    u.CreatedAt,
		LastLoginAt:  u.LastLoginAt,
		LastActiveAt: u.LastActiveAt,
	}
}

// CurrentUserFinder resolves the authenticated user.
type CurrentUserFinder interface {
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
}

// Handler serves the user profile endpoints. It must be mounted behind session.Middleware.Require.
type Handler struct {
	users CurrentUserFinder
	log   logging.Logger
}

// NewHandler returns a user Handler.
func NewHandler(users CurrentUserFinder, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{users: users, log: log}
}

// Me returns the profile of the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := session.UserIDFromContext(ctx)
	if !ok {
		_ = httpx.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.users.CurrentUser(ctx, userID)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		_ = httpx.WriteJSONError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		h.log.Error(ctx, "user: load current user", "user_id", userID, "error", err)
		_ = httpx.WriteJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": NewUserResponse(u)})
}
