package domain

import (
	"errors"
	"time"
)

// User is the core user entity. It owns the current magic-link challenge.
type User struct {
	ID           string
	Email        string // unique, trimmed and lower-cased
	Name         string
	Challenge    MagicLinkChallenge
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time // nil until the first successful redemption
	LastActiveAt *time.Time
}

// MagicLinkChallenge is the single-use login challenge embedded in User.
// Hash is the digest of the secret sent by email; the secret itself is never stored.
type MagicLinkChallenge struct {
	Hash      string
	ExpiresAt time.Time
	Consumed  bool
}

// Redeemable reports whether the challenge can still be redeemed at now.
// The caller compares the digest separately (in constant time).
func (c MagicLinkChallenge) Redeemable(now time.Time) bool {
	return c.Hash != "" && !c.Consumed && now.Before(c.ExpiresAt)
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.CreatedAt.IsZero() {
		return errors.New("created_at is required")
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	return nil
}
