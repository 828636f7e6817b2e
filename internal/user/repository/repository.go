package repository

import (
	"context"
	"errors"
	"time"

	"synq/backend/internal/user/domain"
)

// ErrEmailTaken is returned by Create when another user already has the email.
var ErrEmailTaken = errors.New("email already registered")

// Repository defines persistence for users and their magic-link challenge.
// Lookups return nil, nil when no user matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindByChallengeDigest returns the user whose challenge has the digest, is not consumed and expires after now.
	FindByChallengeDigest(ctx context.Context, digest string, now time.Time) (*domain.User, error)
	// Create persists u including its challenge. Returns ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, u *domain.User) error
	// SetChallenge overwrites the user's challenge, invalidating any previous one.
	SetChallenge(ctx context.Context, userID string, c domain.MagicLinkChallenge, now time.Time) error
	// ClearChallenge removes the challenge only if it still has the given digest.
	ClearChallenge(ctx context.Context, userID, digest string, now time.Time) error
	// ConsumeChallenge atomically marks the matching, unexpired, unconsumed challenge consumed, clears its digest
	// and stamps last login/activity. Returns false when no row matched (lost race, expired or replayed).
	ConsumeChallenge(ctx context.Context, userID, digest string, now time.Time) (bool, error)
	// TouchLastActive records activity (token renewal).
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
}
