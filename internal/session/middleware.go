package session

import (
	"context"
	"errors"
	"net/http"

	"synq/backend/internal/identity/service"
	"synq/backend/internal/logging"
	"synq/backend/internal/platform/httpx"
	"synq/backend/internal/security"
)

// Client-facing messages. Causes are logged, never returned.
const (
	msgUnauthorized   = "unauthorized"
	msgSessionExpired = "session expired, please sign in again"
	msgInternal       = "internal server error"
)

// AccessValidator validates access tokens.
type AccessValidator interface {
	ValidateAccess(token string) (string, error)
}

// Renewer mints a new token pair from a refresh token.
type Renewer interface {
	Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
}

// Middleware validates the access token on every protected request and renews an expired one
// from the refresh cookie.
type Middleware struct {
	tokens  AccessValidator
	renewer Renewer
	cookies CookiePolicy
	log     logging.Logger
}

// NewMiddleware returns a Middleware. renewer may be nil, in which case expired tokens are rejected.
func NewMiddleware(tokens AccessValidator, renewer Renewer, cookies CookiePolicy, log logging.Logger) *Middleware {
	if log == nil {
		log = logging.Nop()
	}
	return &Middleware{tokens: tokens, renewer: renewer, cookies: cookies, log: log}
}

// Require returns a handler that only calls next for an authenticated request.
// The resolved user id is available to next via UserIDFromContext.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		token := ReadAccessToken(r)
		if token == "" {
			m.unauthorized(w, r, "no_token", msgUnauthorized)
			return
		}

		userID, err := m.tokens.ValidateAccess(token)
		if err == nil {
			next.ServeHTTP(w, r.WithContext(WithUserID(ctx, userID)))
			return
		}
		if !errors.Is(err, security.ErrTokenExpired) {
			m.unauthorized(w, r, "invalid_access_token", msgUnauthorized)
			return
		}

		refresh := ReadRefreshToken(r)
		if refresh == "" || m.renewer == nil {
			m.unauthorized(w, r, "expired_without_refresh", msgUnauthorized)
			return
		}
		res, err := m.renewer.Refresh(ctx, refresh)
		if err != nil {
			if errors.Is(err, security.ErrRefreshTokenInvalid) || errors.Is(err, service.ErrUserNotFound) {
				m.cookies.Clear(w)
				m.unauthorized(w, r, "refresh_rejected", msgSessionExpired)
				return
			}
			m.log.Error(ctx, "session: renewal failed", "error", err)
			_ = httpx.WriteJSONError(w, http.StatusInternalServerError, msgInternal)
			return
		}

		m.cookies.SetTokens(w, res.Tokens)
		next.ServeHTTP(w, r.WithContext(WithUserID(ctx, res.User.ID)))
	})
}

func (m *Middleware) unauthorized(w http.ResponseWriter, r *http.Request, reason, msg string) {
	m.log.Warn(r.Context(), "session: unauthenticated request", "reason", reason, "path", r.URL.Path)
	_ = httpx.WriteJSONError(w, http.StatusUnauthorized, msg)
}
