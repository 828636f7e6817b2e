package engine

import "context"

// Actions guarded by the access policy.
const (
	ActionWaitlistList = "waitlist:list"
)

// AccessInput is the policy input for one authorization decision.
type AccessInput struct {
	UserID string
	Email  string
	Action string
}

// Evaluator decides whether a caller may perform an action.
type Evaluator interface {
	// Allow reports whether the input is permitted. An error means no decision could be made;
	// callers must deny in that case.
	Allow(ctx context.Context, in AccessInput) (bool, error)
}
