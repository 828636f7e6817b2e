package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"synq/backend/internal/identity/service"
	"synq/backend/internal/logging"
	"synq/backend/internal/platform/httpx"
	"synq/backend/internal/waitlist/domain"
	"synq/backend/internal/waitlist/repository"
)

const maxListLimit = 500

// Store is the waitlist persistence used by the handler.
type Store interface {
	Add(ctx context.Context, e *domain.Entry) error
	List(ctx context.Context, limit int) ([]*domain.Entry, error)
}

// Handler serves the waitlist endpoints.
type Handler struct {
	store Store
	log   logging.Logger
	now   func() time.Time
}

// NewHandler returns a waitlist Handler.
func NewHandler(store Store, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{store: store, log: log, now: time.Now}
}

type addRequest struct {
	Email string `json:"email"`
}

type entryResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Add handles POST /api/waitlist/add.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := service.NormalizeEmail(req.Email)
	if err := service.ValidateEmail(email); err != nil {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry := &domain.Entry{ID: uuid.New().String(), Email: email, CreatedAt: h.now().UTC()}
	if err := h.store.Add(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			_ = httpx.WriteJSONError(w, http.StatusConflict, "email already on waitlist")
			return
		}
		h.log.Error(ctx, "waitlist: add entry", "email", logging.MaskEmail(email), "error", err)
		_ = httpx.WriteJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.log.Info(ctx, "waitlist: entry added", "email", logging.MaskEmail(email))
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Added to waitlist"})
}

// List handles GET /api/waitlist?limit=N. Entries are returned newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := maxListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			_ = httpx.WriteJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	entries, err := h.store.List(ctx, limit)
	if err != nil {
		h.log.Error(ctx, "waitlist: list entries", "error", err)
		_ = httpx.WriteJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{ID: e.ID, Email: e.Email, CreatedAt: e.CreatedAt})
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"entries": out, "count": len(out)})
}
