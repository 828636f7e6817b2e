package server

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	healthhandler "synq/backend/internal/health/handler"
	identityhandler "synq/backend/internal/identity/handler"
	"synq/backend/internal/logging"
	"synq/backend/internal/platform/httpx"
	"synq/backend/internal/session"
	userhandler "synq/backend/internal/user/handler"
	waitlisthandler "synq/backend/internal/waitlist/handler"
)

// Handlers holds the HTTP handlers mounted by NewHTTPHandler. Nil handlers leave their routes unmounted.
type Handlers struct {
	Auth     *identityhandler.AuthHandler
	Users    *userhandler.Handler
	Waitlist *waitlisthandler.Handler
	Health   *healthhandler.HTTPHandler
	// Session gates every protected route. Required when Users or Waitlist is set.
	Session *session.Middleware
	// WaitlistGuard authorizes GET /api/waitlist after authentication (e.g. rbac.RequireAccess).
	WaitlistGuard httpx.Middleware
}

// HTTPOptions configures the middleware stack.
type HTTPOptions struct {
	CORSOrigins []string
	// HSTS adds Strict-Transport-Security; enable only behind TLS.
	HSTS bool
	// Instrument wraps the handler with otelhttp.
	Instrument bool
	Log        logging.Logger
}

// NewHTTPHandler builds the API router.
//
// Public routes:
//   - GET  /ping, GET /healthz
//   - POST /auth/request-link, GET /auth/verify-token, POST /auth/refresh-token, POST /auth/logout
//   - POST /api/waitlist/add
//
// Protected routes (session.Middleware.Require):
//   - GET /auth/me
//   - GET /api/waitlist (plus WaitlistGuard)
func NewHTTPHandler(h Handlers, opts HTTPOptions) http.Handler {
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	mux := http.NewServeMux()

	if h.Health != nil {
		mux.HandleFunc("GET /ping", h.Health.Ping)
		mux.HandleFunc("GET /healthz", h.Health.Healthz)
	}
	if h.Auth != nil {
		mux.HandleFunc("POST /auth/request-link", h.Auth.RequestLink)
		mux.HandleFunc("GET /auth/verify-token", h.Auth.VerifyToken)
		mux.HandleFunc("POST /auth/refresh-token", h.Auth.RefreshToken)
		mux.HandleFunc("POST /auth/logout", h.Auth.Logout)
	}
	if h.Users != nil && h.Session != nil {
		mux.Handle("GET /auth/me", h.Session.Require(http.HandlerFunc(h.Users.Me)))
	}
	if h.Waitlist != nil {
		mux.HandleFunc("POST /api/waitlist/add", h.Waitlist.Add)
		if h.Session != nil {
			list := httpx.Chain(http.HandlerFunc(h.Waitlist.List), h.Session.Require, h.WaitlistGuard)
			mux.Handle("GET /api/waitlist", list)
		}
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_ = httpx.WriteJSONError(w, http.StatusNotFound, "not found")
	})

	handler := httpx.Chain(mux,
		httpx.RecoverPanic(opts.Log),
		httpx.RequestContext(),
		httpx.SecurityHeaders(opts.HSTS),
		httpx.CORS(opts.CORSOrigins),
	)
	if opts.Instrument {
		handler = otelhttp.NewHandler(handler, "synq-http")
	}
	return handler
}
