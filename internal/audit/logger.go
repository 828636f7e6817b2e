// Package audit records security-relevant auth events.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"synq/backend/internal/logging"
	"synq/backend/internal/telemetry"
	"synq/backend/internal/telemetry/domain"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger records a single auth event. Implementations are best-effort and never fail the caller.
// email is the plain address; implementations mask it before it leaves the process.
type AuditLogger interface {
	LogEvent(ctx context.Context, eventType, userID, email, reason string)
}

// Logger implements AuditLogger by emitting AuthEvents asynchronously.
type Logger struct {
	emitter     telemetry.EventEmitter
	ipExtractor IPExtractor
	log         logging.Logger
	now         func() time.Time
}

// NewLogger returns an AuditLogger that emits to emitter and uses ipExtractor for the client IP.
// ipExtractor may be nil; then IP is recorded as "unknown". A nil emitter disables emission.
func NewLogger(emitter telemetry.EventEmitter, ipExtractor IPExtractor, log logging.Logger) *Logger {
	if log == nil {
		log = logging.Nop()
	}
	return &Logger{emitter: emitter, ipExtractor: ipExtractor, log: log, now: time.Now}
}

// LogEvent builds the event and emits it in the background.
func (l *Logger) LogEvent(ctx context.Context, eventType, userID, email, reason string) {
	if l == nil || l.emitter == nil {
		return
	}
	telemetry.EmitAsync(ctx, l.emitter, l.event(ctx, eventType, userID, email, reason), l.log)
}

func (l *Logger) event(ctx context.Context, eventType, userID, email, reason string) *domain.AuthEvent {
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	var masked string
	if email != "" {
		masked = logging.MaskEmail(email)
	}
	return &domain.AuthEvent{
		ID:        uuid.New().String(),
		EventType: eventType,
		Source:    domain.SourceAuth,
		UserID:    userID,
		Email:     masked,
		IP:        ip,
		Reason:    reason,
		CreatedAt: l.now().UTC(),
	}
}
