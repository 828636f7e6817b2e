// Package session carries the token pair across the HTTP boundary and gates protected handlers.
package session

import (
	"net/http"
	"strings"
	"time"

	"synq/backend/internal/security"
)

// Cookie names shared with the frontend.
const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

const bearerPrefix = "bearer "

// CookiePolicy holds the environment-dependent cookie attributes.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
	Path     string
	// MaxAge bounds the browser lifetime of both cookies. The access cookie outlives its JWT so an
	// expired access token still reaches the middleware and can be renewed.
	MaxAge time.Duration
	now    func() time.Time
}

// NewCookiePolicy returns the policy for the environment. sameSite is "", "lax", "strict" or "none";
// empty means Lax in development and Strict in production. maxAge is normally the refresh TTL.
func NewCookiePolicy(production bool, sameSite, domain string, maxAge time.Duration) CookiePolicy {
	p := CookiePolicy{
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
		Domain:   domain,
		Path:     "/",
		MaxAge:   maxAge,
		now:      time.Now,
	}
	switch strings.ToLower(strings.TrimSpace(sameSite)) {
	case "strict":
		p.SameSite = http.SameSiteStrictMode
	case "lax":
		p.SameSite = http.SameSiteLaxMode
	case "none":
		p.SameSite = http.SameSiteNoneMode
		p.Secure = true
	default:
		if production {
			p.SameSite = http.SameSiteStrictMode
		}
	}
	return p
}

// SetTokens writes both cookies, overwriting any previous pair.
func (p CookiePolicy) SetTokens(w http.ResponseWriter, pair security.TokenPair) {
	http.SetCookie(w, p.cookie(AccessCookieName, pair.AccessToken, p.maxAgeSeconds(pair.RefreshExpiresAt)))
	http.SetCookie(w, p.cookie(RefreshCookieName, pair.RefreshToken, p.maxAgeSeconds(pair.RefreshExpiresAt)))
}

// Clear expires both cookies.
func (p CookiePolicy) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		c := p.cookie(name, "", -1)
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (p CookiePolicy) cookie(name, value string, maxAge int) *http.Cookie {
	path := p.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   p.Domain,
		MaxAge:   maxAge,
		Secure:   p.Secure,
		HttpOnly: true,
		SameSite: p.SameSite,
	}
}

// maxAgeSeconds returns the policy MaxAge, capped by the refresh token expiry when known.
func (p CookiePolicy) maxAgeSeconds(refreshExpiresAt time.Time) int {
	d := p.MaxAge
	if !refreshExpiresAt.IsZero() {
		now := time.Now
		if p.now != nil {
			now = p.now
		}
		if until := refreshExpiresAt.Sub(now()); d <= 0 || until < d {
			d = until
		}
	}
	if d <= 0 {
		return 0
	}
	return int(d.Seconds())
}

// ReadAccessToken returns the access token from the cookie, or from an Authorization Bearer header.
func ReadAccessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// ReadRefreshToken returns the refresh token cookie value, or "".
func ReadRefreshToken(r *http.Request) string {
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		return c.Value
	}
	return ""
}
