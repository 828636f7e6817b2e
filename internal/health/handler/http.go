package handler

import (
	"net/http"

	"synq/backend/internal/logging"
	"synq/backend/internal/platform/httpx"
)

// HTTPHandler serves liveness and readiness endpoints.
type HTTPHandler struct {
	checker *Checker
	log     logging.Logger
}

// NewHTTPHandler returns an HTTPHandler. checker may be nil, in which case readiness always succeeds.
func NewHTTPHandler(checker *Checker, log logging.Logger) *HTTPHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &HTTPHandler{checker: checker, log: log}
}

// Ping handles GET /ping.
func (h *HTTPHandler) Ping(w http.ResponseWriter, r *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]bool{"pong": true})
}

// Healthz handles GET /healthz. The failing dependency is logged, not returned.
func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.Check(r.Context()); err != nil {
		h.log.Warn(r.Context(), "health: not ready", "error", err)
		_ = httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
