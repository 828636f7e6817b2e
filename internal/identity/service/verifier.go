package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"synq/backend/internal/audit"
	"synq/backend/internal/logging"
	"synq/backend/internal/security"
	"synq/backend/internal/telemetry"
	"synq/backend/internal/telemetry/domain"
	userdomain "synq/backend/internal/user/domain"
)

// VerifierRepo is the minimal user repository needed by the verifier.
type VerifierRepo interface {
	FindByChallengeDigest(ctx context.Context, digest string, now time.Time) (*userdomain.User, error)
	ConsumeChallenge(ctx context.Context, userID, digest string, now time.Time) (bool, error)
}

// TokenMinter mints a token pair for a user.
type TokenMinter interface {
	Mint(userID string) (security.TokenPair, error)
}

// RedeemResult is the outcome of a successful redemption.
type RedeemResult struct {
	User   *userdomain.User
	Tokens security.TokenPair
}

// MagicLinkVerifier redeems challenges exactly once.
type MagicLinkVerifier struct {
	users   VerifierRepo
	tokens  TokenMinter
	log     logging.Logger
	audit   audit.AuditLogger
	metrics *telemetry.AuthMetrics
	now     func() time.Time
}

// NewMagicLinkVerifier returns a verifier. auditLogger and metrics may be nil.
func NewMagicLinkVerifier(users VerifierRepo, tokens TokenMinter, log logging.Logger, auditLogger audit.AuditLogger, metrics *telemetry.AuthMetrics) (*MagicLinkVerifier, error) {
	if users == nil || tokens == nil {
		return nil, errors.New("verifier: repository and token minter are required")
	}
	if log == nil {
		log = logging.Nop()
	}
	return &MagicLinkVerifier{users: users, tokens: tokens, log: log, audit: auditLogger, metrics: metrics, now: time.Now}, nil
}

// WithClock sets the time source. For tests.
func (v *MagicLinkVerifier) WithClock(now func() time.Time) *MagicLinkVerifier {
	v.now = now
	return v
}

// Redeem consumes the challenge whose digest matches rawSecret and mints a token pair.
// Wrong, expired and consumed secrets all return ErrInvalidOrExpiredChallenge.
func (v *MagicLinkVerifier) Redeem(ctx context.Context, rawSecret string) (*RedeemResult, error) {
	rawSecret = strings.TrimSpace(rawSecret)
	if rawSecret == "" {
		return nil, v.reject(ctx, "", "empty_secret")
	}
	digest := security.HashChallenge(rawSecret)
	now := v.now().UTC()

	user, err := v.users.FindByChallengeDigest(ctx, digest, now)
	if err != nil {
		return nil, &StorageError{Op: "find challenge", Err: err}
	}
	if user == nil || !user.Challenge.Redeemable(now) || !security.ChallengeDigestEqual(user.Challenge.Hash, digest) {
		return nil, v.reject(ctx, "", "no_match")
	}

	ok, err := v.users.ConsumeChallenge(ctx, user.ID, digest, now)
	if err != nil {
		return nil, &StorageError{Op: "consume challenge", Err: err}
	}
	if !ok {
		return nil, v.reject(ctx, user.ID, "already_consumed")
	}

	pair, err := v.tokens.Mint(user.ID)
	if err != nil {
		return nil, fmt.Errorf("mint tokens: %w", err)
	}

	user.Challenge = userdomain.MagicLinkChallenge{Consumed: true}
	user.LastLoginAt = &now
	user.LastActiveAt = &now
	user.UpdatedAt = now

	v.log.Info(ctx, "magic link redeemed", "user_id", user.ID)
	if v.audit != nil {
		v.audit.LogEvent(ctx, domain.EventLoginSucceeded, user.ID, user.Email, "")
	}
	v.metrics.Login(ctx, true)
	return &RedeemResult{User: user, Tokens: pair}, nil
}

// reject records the internal cause and returns the uniform error.
func (v *MagicLinkVerifier) reject(ctx context.Context, userID, reason string) error {
	v.log.Warn(ctx, "magic link rejected", "reason", reason)
	if v.audit != nil {
		v.audit.LogEvent(ctx, domain.EventLoginFailed, userID, "", reason)
	}
	v.metrics.Login(ctx, false)
	return ErrInvalidOrExpiredChallenge
}
