package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"synq/backend/internal/audit"
	"synq/backend/internal/logging"
	"synq/backend/internal/mail"
	"synq/backend/internal/security"
	"synq/backend/internal/telemetry"
	"synq/backend/internal/telemetry/domain"
	userdomain "synq/backend/internal/user/domain"
	userrepo "synq/backend/internal/user/repository"
)

// DefaultMagicLinkTTL is how long an issued challenge stays redeemable.
const DefaultMagicLinkTTL = 15 * time.Minute

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IssuerRepo is the minimal user repository needed by the issuer.
type IssuerRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	SetChallenge(ctx context.Context, userID string, c userdomain.MagicLinkChallenge, now time.Time) error
	ClearChallenge(ctx context.Context, userID, digest string, now time.Time) error
}

// MagicLinkIssuer creates single-use login challenges and hands them to the mail collaborator.
type MagicLinkIssuer struct {
	users   IssuerRepo
	sender  mail.Sender
	baseURL *url.URL
	ttl     time.Duration
	log     logging.Logger
	audit   audit.AuditLogger
	metrics *telemetry.AuthMetrics
	now     func() time.Time
}

// NewMagicLinkIssuer returns an issuer that builds links from baseURL. ttl <= 0 uses DefaultMagicLinkTTL.
// auditLogger and metrics may be nil.
func NewMagicLinkIssuer(
	users IssuerRepo,
	sender mail.Sender,
	baseURL string,
	ttl time.Duration,
	log logging.Logger,
	auditLogger audit.AuditLogger,
	metrics *telemetry.AuthMetrics,
) (*MagicLinkIssuer, error) {
	if users == nil || sender == nil {
		return nil, errors.New("issuer: repository and sender are required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("issuer: invalid magic link base URL %q", baseURL)
	}
	if ttl <= 0 {
		ttl = DefaultMagicLinkTTL
	}
	if log == nil {
		log = logging.Nop()
	}
	return &MagicLinkIssuer{
		users:   users,
		sender:  sender,
		baseURL: u,
		ttl:     ttl,
		log:     log,
		audit:   auditLogger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// WithClock sets the time source. For tests.
func (s *MagicLinkIssuer) WithClock(now func() time.Time) *MagicLinkIssuer {
	s.now = now
	return s
}

// Issue stores a fresh challenge for email (creating the user if needed) and delivers the link.
// On delivery failure the challenge is cleared and a *DeliveryError is returned.
func (s *MagicLinkIssuer) Issue(ctx context.Context, email, name string) error {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}
	secret, digest, err := security.NewChallengeSecret()
	if err != nil {
		return fmt.Errorf("generate challenge: %w", err)
	}
	now := s.now().UTC()
	challenge := userdomain.MagicLinkChallenge{Hash: digest, ExpiresAt: now.Add(s.ttl)}

	userID, err := s.storeChallenge(ctx, email, strings.TrimSpace(name), challenge, now)
	if err != nil {
		return err
	}

	if err := s.sender.SendChallenge(ctx, email, s.link(secret)); err != nil {
		// Best-effort: the challenge was never delivered, so it must not stay redeemable.
		if cerr := s.users.ClearChallenge(context.WithoutCancel(ctx), userID, digest, now); cerr != nil {
			s.log.Error(ctx, "issuer: clear undelivered challenge", "user_id", userID, "error", cerr)
		}
		s.log.Error(ctx, "issuer: magic link delivery failed", "user_id", userID, "email", logging.MaskEmail(email), "error", err)
		s.recordEvent(ctx, domain.EventMagicLinkDeliveryFailed, userID, email, "delivery_failed")
		return &DeliveryError{Err: err}
	}

	s.log.Info(ctx, "magic link issued", "user_id", userID, "email", logging.MaskEmail(email))
	s.recordEvent(ctx, domain.EventMagicLinkIssued, userID, email, "")
	s.metrics.LinkIssued(ctx)
	return nil
}

// storeChallenge creates the user with the challenge, or overwrites the challenge of the existing user.
func (s *MagicLinkIssuer) storeChallenge(ctx context.Context, email, name string, c userdomain.MagicLinkChallenge, now time.Time) (string, error) {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", &StorageError{Op: "get user by email", Err: err}
	}
	if existing == nil {
		u := &userdomain.User{
			ID:        uuid.New().String(),
			Email:     email,
			Name:      name,
			Challenge: c,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := s.users.Create(ctx, u)
		if err == nil {
			return u.ID, nil
		}
		if !errors.Is(err, userrepo.ErrEmailTaken) {
			return "", &StorageError{Op: "create user", Err: err}
		}
		// Lost a concurrent create for the same email; fall through to the existing record.
		existing, err = s.users.GetByEmail(ctx, email)
		if err != nil {
			return "", &StorageError{Op: "get user by email", Err: err}
		}
		if existing == nil {
			return "", &StorageError{Op: "get user by email", Err: ErrUserNotFound}
		}
	}
	if err := s.users.SetChallenge(ctx, existing.ID, c, now); err != nil {
		return "", &StorageError{Op: "set challenge", Err: err}
	}
	return existing.ID, nil
}

func (s *MagicLinkIssuer) link(secret string) string {
	u := *s.baseURL
	q := u.Query()
	q.Set("token", secret)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *MagicLinkIssuer) recordEvent(ctx context.Context, eventType, userID, email, reason string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, eventType, userID, email, reason)
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail returns a *ValidationError for an empty or malformed (normalized) address.
func ValidateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Reason: "is invalid"}
	}
	return nil
}
