package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"synq/backend/internal/identity/service"
	"synq/backend/internal/logging"
	"synq/backend/internal/platform/httpx"
	"synq/backend/internal/security"
	"synq/backend/internal/session"
	userhandler "synq/backend/internal/user/handler"
)

const (
	msgInternal       = "internal server error"
	msgUnauthorized   = "unauthorized"
	msgSessionExpired = "session expired, please sign in again"
)

// Issuer issues magic links.
type Issuer interface {
	Issue(ctx context.Context, email, name string) error
}

// Verifier redeems magic-link secrets.
type Verifier interface {
	Redeem(ctx context.Context, rawSecret string) (*service.RedeemResult, error)
}

// Sessions renews and ends sessions.
type Sessions interface {
	Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
	Logout(ctx context.Context, userID string)
}

// Identifier resolves a user id from a token without renewing it.
type Identifier interface {
	ValidateAccess(token string) (string, error)
	ValidateRefresh(token string) (string, error)
}

// AuthHandler serves the magic-link authentication endpoints and maps service errors to HTTP.
type AuthHandler struct {
	issuer   Issuer
	verifier Verifier
	sessions Sessions
	tokens   Identifier
	cookies  session.CookiePolicy
	log      logging.Logger
}

// NewAuthHandler returns an AuthHandler. tokens may be nil; logout then records no user id.
func NewAuthHandler(issuer Issuer, verifier Verifier, sessions Sessions, tokens Identifier, cookies session.CookiePolicy, log logging.Logger) *AuthHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &AuthHandler{issuer: issuer, verifier: verifier, sessions: sessions, tokens: tokens, cookies: cookies, log: log}
}

type requestLinkRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RequestLink handles POST /auth/request-link. The secret is only ever delivered by email.
func (h *AuthHandler) RequestLink(w http.ResponseWriter, r *http.Request) {
	var req requestLinkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		if errors.Is(err, httpx.ErrEmptyBody) {
			_ = httpx.WriteJSONError(w, http.StatusBadRequest, "email is required")
			return
		}
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.issuer.Issue(r.Context(), req.Email, req.Name); err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Magic link sent"})
}

// VerifyToken handles GET /auth/verify-token?token=. On success both cookies are set.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	secret := strings.TrimSpace(r.URL.Query().Get("token"))
	if secret == "" {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, "token is required")
		return
	}
	res, err := h.verifier.Redeem(r.Context(), secret)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cookies.SetTokens(w, res.Tokens)
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    userhandler.NewUserResponse(res.User),
	})
}

// RefreshToken handles POST /auth/refresh-token using the refresh cookie.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refresh := session.ReadRefreshToken(r)
	if refresh == "" {
		_ = httpx.WriteJSONError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	res, err := h.sessions.Refresh(r.Context(), refresh)
	if err != nil {
		if errors.Is(err, security.ErrRefreshTokenInvalid) {
			h.cookies.Clear(w)
		}
		h.writeError(w, r, err)
		return
	}
	h.cookies.SetTokens(w, res.Tokens)
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Token refreshed",
		"user":    userhandler.NewUserResponse(res.User),
	})
}

// Logout handles POST /auth/logout. It always clears both cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context(), h.identify(r))
	h.cookies.Clear(w)
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// identify returns the user id of the caller when either token still verifies, or "".
func (h *AuthHandler) identify(r *http.Request) string {
	if h.tokens == nil {
		return ""
	}
	if token := session.ReadAccessToken(r); token != "" {
		if id, err := h.tokens.ValidateAccess(token); err == nil {
			return id
		}
	}
	if token := session.ReadRefreshToken(r); token != "" {
		if id, err := h.tokens.ValidateRefresh(token); err == nil {
			return id
		}
	}
	return ""
}

// writeError maps service errors to status codes. Only generic messages reach the client.
func (h *AuthHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *service.ValidationError
		deliveryErr   *service.DeliveryError
	)
	switch {
	case errors.As(err, &validationErr):
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, service.ErrInvalidOrExpiredChallenge):
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, service.ErrInvalidOrExpiredChallenge.Error())
	case errors.Is(err, security.ErrRefreshTokenInvalid), errors.Is(err, security.ErrAccessTokenInvalid):
		_ = httpx.WriteJSONError(w, http.StatusUnauthorized, msgSessionExpired)
	case errors.Is(err, service.ErrUserNotFound):
		_ = httpx.WriteJSONError(w, http.StatusNotFound, "user not found")
	case errors.As(err, &deliveryErr):
		h.log.Error(r.Context(), "auth: magic link delivery failed", "error", err)
		_ = httpx.WriteJSONError(w, http.StatusInternalServerError, "failed to send magic link")
	default:
		h.log.Error(r.Context(), "auth: request failed", "path", r.URL.Path, "error", err)
		_ = httpx.WriteJSONError(w, http.StatusInternalServerError, msgInternal)
	}
}
