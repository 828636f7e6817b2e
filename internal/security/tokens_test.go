package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenProvider_MintAndValidate(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	pair, err := p.Mint("u1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("access or refresh token empty")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}
	if got := pair.AccessExpiresAt.Sub(time.Now()); got <= 14*time.Minute || got > 15*time.Minute {
		t.Errorf("access expires in %v, want ~15m", got)
	}
	if got := pair.RefreshExpiresAt.Sub(time.Now()); got <= 7*24*time.Hour-time.Minute || got > 7*24*time.Hour {
		t.Errorf("refresh expires in %v, want ~7d", got)
	}

	uid, err := p.ValidateAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if uid != "u1" {
		t.Errorf("ValidateAccess user = %q, want u1", uid)
	}
	uid, err = p.ValidateRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if uid != "u1" {
		t.Errorf("ValidateRefresh user = %q, want u1", uid)
	}
}

func TestTokenProvider_RoundTripManyUsers(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	for _, u := range []string{"a", "0b8f0e8e-2a77-4c41-9a8e-2c1d6b7c1f00", "user with spaces", "ü"} {
		pair, err := p.Mint(u)
		if err != nil {
			t.Fatalf("Mint(%q): %v", u, err)
		}
		got, err := p.ValidateAccess(pair.AccessToken)
		if err != nil || got != u {
			t.Errorf("ValidateAccess(Mint(%q)) = %q, %v", u, got, err)
		}
	}
}

func TestTokenProvider_MintEmptySubject(t *testing.T) {
	p, _ := NewTestTokenProvider()
	if _, err := p.Mint(""); err == nil {
		t.Fatal("Mint with empty user id should fail")
	}
}

func TestTokenProvider_KindsAreNotInterchangeable(t *testing.T) {
	p, _ := NewTestTokenProvider()
	pair, err := p.Mint("u1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := p.ValidateAccess(pair.RefreshToken); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Errorf("refresh token as access: want ErrAccessTokenInvalid, got %v", err)
	}
	if _, err := p.ValidateRefresh(pair.AccessToken); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Errorf("access token as refresh: want ErrRefreshTokenInvalid, got %v", err)
	}
}

func TestTokenProvider_Malformed(t *testing.T) {
	p, _ := NewTestTokenProvider()
	for _, tok := range []string{"", "invalid-token", "a.b.c"} {
		_, err := p.ValidateAccess(tok)
		if !errors.Is(err, ErrAccessTokenInvalid) {
			t.Errorf("ValidateAccess(%q): want ErrAccessTokenInvalid, got %v", tok, err)
		}
		if errors.Is(err, ErrTokenExpired) {
			t.Errorf("ValidateAccess(%q): malformed token must not be reported as expired", tok)
		}
		if _, err := p.ValidateRefresh(tok); !errors.Is(err, ErrRefreshTokenInvalid) {
			t.Errorf("ValidateRefresh(%q): want ErrRefreshTokenInvalid, got %v", tok, err)
		}
	}
}

func TestTokenProvider_TamperedSignature(t *testing.T) {
	p, _ := NewTestTokenProvider()
	pair, _ := p.Mint("u1")
	parts := strings.Split(pair.AccessToken, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	_, err := p.ValidateAccess(tampered)
	if !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("want ErrAccessTokenInvalid, got %v", err)
	}
	if errors.Is(err, ErrTokenExpired) {
		t.Fatal("tampered token must not be reported as expired")
	}
}

func TestTokenProvider_ForeignKey(t *testing.T) {
	p, _ := NewTestTokenProvider()
	otherAccess, otherRefresh, err := GenerateSigningKeys()
	if err != nil {
		t.Fatalf("GenerateSigningKeys: %v", err)
	}
	other, err := NewTokenProvider(otherAccess, otherRefresh, "test-issuer", "test-audience", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	pair, _ := other.Mint("u1")
	if _, err := p.ValidateAccess(pair.AccessToken); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Errorf("foreign access token: want ErrAccessTokenInvalid, got %v", err)
	}
	if _, err := p.ValidateRefresh(pair.RefreshToken); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Errorf("foreign refresh token: want ErrRefreshTokenInvalid, got %v", err)
	}
}

func TestTokenProvider_Expired(t *testing.T) {
	p, _ := NewTestTokenProvider()
	past := p.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	pair, err := past.Mint("u1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	_, err = p.ValidateAccess(pair.AccessToken)
	if !errors.Is(err, ErrAccessTokenInvalid) || !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired access: want ErrAccessTokenInvalid+ErrTokenExpired, got %v", err)
	}
	// The refresh token minted an hour ago is still inside its 7d window.
	uid, err := p.ValidateRefresh(pair.RefreshToken)
	if err != nil || uid != "u1" {
		t.Fatalf("ValidateRefresh = %q, %v", uid, err)
	}

	longAgo := p.WithClock(func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) })
	old, _ := longAgo.Mint("u1")
	_, err = p.ValidateRefresh(old.RefreshToken)
	if !errors.Is(err, ErrRefreshTokenInvalid) || !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired refresh: want ErrRefreshTokenInvalid+ErrTokenExpired, got %v", err)
	}
}

func TestTokenProvider_WrongIssuerOrAudience(t *testing.T) {
	p, _ := NewTestTokenProvider()
	access, _ := NewHMACKey(testAccessSecret)
	refresh, _ := NewHMACKey(testRefreshSecret)
	for _, tc := range []struct{ issuer, audience string }{
		{"other-issuer", "test-audience"},
		{"test-issuer", "other-audience"},
	} {
		other, err := NewTokenProvider(access, refresh, tc.issuer, tc.audience, time.Minute, time.Hour)
		if err != nil {
			t.Fatalf("NewTokenProvider: %v", err)
		}
		pair, _ := other.Mint("u1")
		if _, err := p.ValidateAccess(pair.AccessToken); !errors.Is(err, ErrAccessTokenInvalid) {
			t.Errorf("iss=%q aud=%q: want ErrAccessTokenInvalid, got %v", tc.issuer, tc.audience, err)
		}

		expired, _ := other.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }).Mint("u1")
		if _, err := p.ValidateAccess(expired.AccessToken); errors.Is(err, ErrTokenExpired) {
			t.Errorf("iss=%q aud=%q: expired foreign token must not be renewable", tc.issuer, tc.audience)
		}
	}
}

func TestTokenProvider_KeyPair(t *testing.T) {
	p, err := NewTestKeyPairTokenProvider()
	if err != nil {
		t.Fatalf("NewTestKeyPairTokenProvider: %v", err)
	}
	pair, err := p.Mint("u1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	uid, err := p.ValidateAccess(pair.AccessToken)
	if err != nil || uid != "u1" {
		t.Fatalf("ValidateAccess = %q, %v", uid, err)
	}
}

func TestNewTokenProvider_RejectsSharedKey(t *testing.T) {
	k, _ := NewHMACKey(testAccessSecret)
	same, _ := NewHMACKey(testAccessSecret)
	if _, err := NewTokenProvider(k, same, "i", "a", time.Minute, time.Hour); err == nil {
		t.Fatal("NewTokenProvider should reject identical access and refresh keys")
	}
	if _, err := NewTokenProvider(SigningKey{}, k, "i", "a", time.Minute, time.Hour); err == nil {
		t.Fatal("NewTokenProvider should reject an empty key")
	}
	other, _ := NewHMACKey(testRefreshSecret)
	if _, err := NewTokenProvider(k, other, "i", "a", 0, time.Hour); err == nil {
		t.Fatal("NewTokenProvider should reject a zero TTL")
	}
}
