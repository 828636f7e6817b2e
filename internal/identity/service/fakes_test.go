package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"synq/backend/internal/telemetry/domain"
	userdomain "synq/backend/internal/user/domain"
	userrepo "synq/backend/internal/user/repository"
)

// memUserRepo is an in-memory user store whose conditional updates run under one lock.
type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*userdomain.User
	byEmail map[string]string

	getErr     error
	createErr  error
	setErr     error
	consumeErr error
	touchErr   error
	cleared    int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*userdomain.User{}, byEmail: map[string]string{}}
}

func (r *memUserRepo) copyOf(u *userdomain.User) *userdomain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.copyOf(r.byID[id]), nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.copyOf(r.byID[r.byEmail[email]]), nil
}

func (r *memUserRepo) FindByChallengeDigest(ctx context.Context, digest string, now time.Time) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, u := range r.byID {
		if u.Challenge.Hash == digest && !u.Challenge.Consumed && now.Before(u.Challenge.ExpiresAt) {
			return r.copyOf(u), nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byEmail[u.Email]; ok {
		return userrepo.ErrEmailTaken
	}
	r.byID[u.ID] = r.copyOf(u)
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *memUserRepo) SetChallenge(ctx context.Context, userID string, c userdomain.MagicLinkChallenge, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setErr != nil {
		return r.setErr
	}
	if u, ok := r.byID[userID]; ok {
		u.Challenge = userdomain.MagicLinkChallenge{Hash: c.Hash, ExpiresAt: c.ExpiresAt}
		u.UpdatedAt = now
	}
	return nil
}

func (r *memUserRepo) ClearChallenge(ctx context.Context, userID, digest string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[userID]; ok && u.Challenge.Hash == digest {
		u.Challenge.Hash = ""
		u.Challenge.ExpiresAt = time.Time{}
		r.cleared++
	}
	return nil
}

func (r *memUserRepo) ConsumeChallenge(ctx context.Context, userID, digest string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumeErr != nil {
		return false, r.consumeErr
	}
	u, ok := r.byID[userID]
	if !ok || u.Challenge.Hash != digest || u.Challenge.Consumed || !now.Before(u.Challenge.ExpiresAt) {
		return false, nil
	}
	u.Challenge.Consumed = true
	u.Challenge.Hash = ""
	t := now
	u.LastLoginAt = &t
	u.LastActiveAt = &t
	return true, nil
}

func (r *memUserRepo) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.touchErr != nil {
		return r.touchErr
	}
	if u, ok := r.byID[userID]; ok {
		t := at
		u.LastActiveAt = &t
	}
	return nil
}

// captureSender records delivered links.
type captureSender struct {
	mu    sync.Mutex
	links map[string]string
	err   error
}

func newCaptureSender() *captureSender {
	return &captureSender{links: map[string]string{}}
}

func (s *captureSender) SendChallenge(ctx context.Context, email, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.links[email] = link
	return nil
}

func (s *captureSender) link(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links[email]
}

// auditRecorder records audit events synchronously.
type auditRecorder struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (a *auditRecorder) LogEvent(ctx context.Context, eventType, userID, email, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, domain.AuthEvent{EventType: eventType, UserID: userID, Email: email, Reason: reason})
}

func (a *auditRecorder) types() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.EventType)
	}
	return out
}

var errStore = errors.New("store unavailable")

// fixedClock is a mutable test clock.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
