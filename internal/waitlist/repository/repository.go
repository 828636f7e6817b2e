package repository

import (
	"context"
	"errors"

	"synq/backend/internal/waitlist/domain"
)

// ErrDuplicate is returned by Add when the email is already on the waitlist.
var ErrDuplicate = errors.New("email already on waitlist")

// Repository defines persistence for waitlist entries.
type Repository interface {
	Add(ctx context.Context, e *domain.Entry) error
	// List returns entries newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*domain.Entry, error)
}
