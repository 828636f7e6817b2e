package service

import (
	"errors"
	"fmt"
)

// Sentinel errors; the HTTP handler maps them to status codes.
var (
	// ErrInvalidOrExpiredChallenge covers wrong, expired and already-consumed secrets alike.
	ErrInvalidOrExpiredChallenge = errors.New("invalid or expired magic link")
	ErrUserNotFound              = errors.New("user not found")
)

// ValidationError reports user-correctable input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// StorageError wraps a persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DeliveryError wraps a failure to hand the magic link to the mail collaborator.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
