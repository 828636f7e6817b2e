package mail

import (
	"context"
	"sync"
	"time"

	"synq/backend/internal/logging"
)

// Outbox is an in-memory Sender for development (MAIL_DRIVER=log). It keeps the latest message per
// address until it expires and logs only that a message was queued.
type Outbox struct {
	composer *Composer
	ttl      time.Duration
	log      logging.Logger

	mu   sync.RWMutex
	m    map[string]outboxEntry
	nowF func() time.Time
}

type outboxEntry struct {
	msg       Message
	expiresAt time.Time
}

// NewOutbox returns an outbox that retains messages for ttl.
func NewOutbox(composer *Composer, ttl time.Duration, log logging.Logger) *Outbox {
	if log == nil {
		log = logging.Nop()
	}
	return &Outbox{
		composer: composer,
		ttl:      ttl,
		log:      log,
		m:        make(map[string]outboxEntry),
		nowF:     time.Now,
	}
}

// SendChallenge stores the rendered message for email.
func (o *Outbox) SendChallenge(ctx context.Context, email, link string) error {
	msg, err := o.composer.Compose(email, link)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.m[email] = outboxEntry{msg: msg, expiresAt: o.nowF().Add(o.ttl)}
	o.mu.Unlock()
	o.log.Info(ctx, "mail: magic link queued in dev outbox", "email", logging.MaskEmail(email))
	return nil
}

// Latest returns the last message sent to email if present and not expired.
func (o *Outbox) Latest(email string) (Message, bool) {
	o.mu.RLock()
	e, ok := o.m[email]
	o.mu.RUnlock()
	if !ok {
		return Message{}, false
	}
	if !e.expiresAt.After(o.nowF()) {
		o.mu.Lock()
		delete(o.m, email)
		o.mu.Unlock()
		return Message{}, false
	}
	return e.msg, true
}
