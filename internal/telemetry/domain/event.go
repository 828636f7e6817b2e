package domain

import "time"

// Auth event types.
const (
	EventMagicLinkIssued         = "magic_link_issued"
	EventMagicLinkDeliveryFailed = "magic_link_delivery_failed"
	EventLoginSucceeded          = "login_succeeded"
	EventLoginFailed             = "login_failed"
	EventSessionRenewed          = "session_renewed"
	EventSessionRenewalFailed    = "session_renewal_failed"
	EventLogout                  = "logout"
)

// SourceAuth is the Source of events emitted by the auth core.
const SourceAuth = "auth"

// AuthEvent is one authentication event. Email is always masked; secrets and tokens are never recorded.
type AuthEvent struct {
	ID        string    `json:"id"`
	EventType string    `json:"eventType"`
	Source    string    `json:"source"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"email,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
