package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrAccessTokenInvalid is returned when an access token is missing, malformed, badly signed or expired.
	ErrAccessTokenInvalid = errors.New("access token invalid")
	// ErrRefreshTokenInvalid is returned when a refresh token is missing, malformed, badly signed or expired.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	// ErrTokenExpired is additionally matched (errors.Is) when a well-formed, correctly signed token has expired.
	ErrTokenExpired = errors.New("token expired")
)

// TokenKind is bound into every token as the "typ" claim.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims holds JWT claims for access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Kind TokenKind `json:"typ"`
}

// TokenPair is a freshly minted access and refresh token. Never persisted.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenProvider mints and validates access/refresh JWTs, each kind with its own key.
type TokenProvider struct {
	access     SigningKey
	refresh    SigningKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider. access and refresh must be distinct keys.
// issuer and audience are set on claims and validated on parse.
func NewTokenProvider(access, refresh SigningKey, issuer, audience string, accessTTL, refreshTTL time.Duration) (*TokenProvider, error) {
	if access.Alg() == "" || refresh.Alg() == "" {
		return nil, ErrInvalidKey
	}
	if access.Equal(refresh) {
		return nil, errors.New("security: access and refresh keys must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("security: token TTLs must be positive")
	}
	return &TokenProvider{
		access:     access,
		refresh:    refresh,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock returns a copy of p that uses now for issuing and validating tokens.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	cp := *p
	cp.now = now
	return &cp
}

// AccessTTL returns the access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// Mint issues a new access and refresh token for userID. No state is persisted;
// several valid pairs may coexist for one user.
func (p *TokenProvider) Mint(userID string) (TokenPair, error) {
	if userID == "" {
		return TokenPair{}, errors.New("security: empty subject")
	}
	now := p.now().UTC()
	access, accessExp, err := p.issue(p.access, TokenKindAccess, userID, now, p.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := p.issue(p.refresh, TokenKindRefresh, userID, now, p.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (p *TokenProvider) issue(key SigningKey, kind TokenKind, userID string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Kind: kind,
	}
	token, err := jwt.NewWithClaims(key.method, claims).SignedString(key.sign)
	return token, expiresAt, err
}

// ValidateAccess verifies signature, exp, iss, aud and kind of an access token and returns its user id.
// Errors match ErrAccessTokenInvalid, and also ErrTokenExpired when the token is only expired.
func (p *TokenProvider) ValidateAccess(token string) (string, error) {
	return p.validate(token, p.access, TokenKindAccess, ErrAccessTokenInvalid)
}

// ValidateRefresh verifies a refresh token and returns its user id.
// Errors match ErrRefreshTokenInvalid, and also ErrTokenExpired when the token is only expired.
func (p *TokenProvider) ValidateRefresh(token string) (string, error) {
	return p.validate(token, p.refresh, TokenKindRefresh, ErrRefreshTokenInvalid)
}

func (p *TokenProvider) validate(tokenString string, key SigningKey, kind TokenKind, invalid error) (string, error) {
	if tokenString == "" {
		return "", invalid
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != key.Alg() {
			return nil, invalid
		}
		return key.verify, nil
	},
		jwt.WithValidMethods([]string{key.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		// The signature is verified before claims, so an expiry error implies a genuine token.
		if errors.Is(err, jwt.ErrTokenExpired) && p.claimsMatch(claims, kind) {
			return "", fmt.Errorf("%w: %w", invalid, ErrTokenExpired)
		}
		return "", fmt.Errorf("%w: %v", invalid, err)
	}
	if !p.claimsMatch(claims, kind) {
		return "", fmt.Errorf("%w: unexpected claims", invalid)
	}
	return claims.Subject, nil
}

func (p *TokenProvider) claimsMatch(c *Claims, kind TokenKind) bool {
	return c.Kind == kind &&
		c.Subject != "" &&
		c.Issuer == p.issuer &&
		slices.Contains(c.Audience, p.audience)
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
