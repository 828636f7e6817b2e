package domain

import (
	"errors"
	"time"
)

// Entry is a pre-launch signup.
type Entry struct {
	ID        string
	Email     string // unique, trimmed and lower-cased
	CreatedAt time.Time
}

// Validate validates the entry for persistence.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.Email == "" {
		return errors.New("email is required")
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at is required")
	}
	return nil
}
