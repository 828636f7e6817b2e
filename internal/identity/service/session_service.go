package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"synq/backend/internal/audit"
	"synq/backend/internal/logging"
	"synq/backend/internal/security"
	"synq/backend/internal/telemetry"
	"synq/backend/internal/telemetry/domain"
	userdomain "synq/backend/internal/user/domain"
)

// SessionRepo is the minimal user repository needed by the session service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
}

// RefreshTokens mints and validates token pairs.
type RefreshTokens interface {
	TokenMinter
	ValidateRefresh(token string) (string, error)
}

// RefreshResult is the outcome of a successful refresh.
type RefreshResult struct {
	User   *userdomain.User
	Tokens security.TokenPair
}

// SessionService renews token pairs from refresh tokens and resolves the current user.
// It keeps no server-side session state.
type SessionService struct {
	users   SessionRepo
	tokens  RefreshTokens
	log     logging.Logger
	audit   audit.AuditLogger
	metrics *telemetry.AuthMetrics
	now     func() time.Time
}

// NewSessionService returns a SessionService. auditLogger and metrics may be nil.
func NewSessionService(users SessionRepo, tokens RefreshTokens, log logging.Logger, auditLogger audit.AuditLogger, metrics *telemetry.AuthMetrics) (*SessionService, error) {
	if users == nil || tokens == nil {
		return nil, errors.New("session service: repository and tokens are required")
	}
	if log == nil {
		log = logging.Nop()
	}
	return &SessionService{users: users, tokens: tokens, log: log, audit: auditLogger, metrics: metrics, now: time.Now}, nil
}

// WithClock sets the time source. For tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Refresh validates refreshToken and mints a new pair for its user.
// Errors: security.ErrRefreshTokenInvalid (possibly also ErrTokenExpired), ErrUserNotFound, *StorageError.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		s.renewalFailed(ctx, "", "missing_refresh_token")
		return nil, security.ErrRefreshTokenInvalid
	}
	userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		reason := "invalid_refresh_token"
		if errors.Is(err, security.ErrTokenExpired) {
			reason = "expired_refresh_token"
		}
		s.renewalFailed(ctx, "", reason)
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "get user", Err: err}
	}
	if user == nil {
		s.renewalFailed(ctx, userID, "user_not_found")
		return nil, ErrUserNotFound
	}
	pair, err := s.tokens.Mint(user.ID)
	if err != nil {
		return nil, fmt.Errorf("mint tokens: %w", err)
	}
	now := s.now().UTC()
	if err := s.users.TouchLastActive(ctx, user.ID, now); err != nil {
		s.log.Warn(ctx, "session: touch last active", "user_id", user.ID, "error", err)
	} else {
		user.LastActiveAt = &now
	}
	s.log.Info(ctx, "session renewed", "user_id", user.ID)
	if s.audit != nil {
		s.audit.LogEvent(ctx, domain.EventSessionRenewed, user.ID, "", "")
	}
	s.metrics.Renewal(ctx, true)
	return &RefreshResult{User: user, Tokens: pair}, nil
}

// CurrentUser returns the user for userID or ErrUserNotFound.
func (s *SessionService) CurrentUser(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "get user", Err: err}
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Logout records the logout. Tokens are stateless, so clearing the cookies is the whole operation.
// userID is empty when the request carried no valid token.
func (s *SessionService) Logout(ctx context.Context, userID string) {
	s.log.Info(ctx, "logout", "user_id", userID)
	if s.audit != nil {
		s.audit.LogEvent(ctx, domain.EventLogout, userID, "", "")
	}
}

func (s *SessionService) renewalFailed(ctx context.Context, userID, reason string) {
	s.log.Warn(ctx, "session renewal rejected", "reason", reason)
	if s.audit != nil {
		s.audit.LogEvent(ctx, domain.EventSessionRenewalFailed, userID, "", reason)
	}
	s.metrics.Renewal(ctx, false)
}
