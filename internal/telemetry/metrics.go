package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics counts auth core outcomes. A nil *AuthMetrics records nothing.
type AuthMetrics struct {
	linksIssued metric.Int64Counter
	logins      metric.Int64Counter
	renewals    metric.Int64Counter
}

// NewAuthMetrics creates the counters on the given meter provider.
func NewAuthMetrics(mp metric.MeterProvider) (*AuthMetrics, error) {
	meter := mp.Meter("synq.auth")
	linksIssued, err := meter.Int64Counter("auth.magic_links.issued",
		metric.WithDescription("Magic links handed to the delivery channel"))
	if err != nil {
		return nil, err
	}
	logins, err := meter.Int64Counter("auth.logins",
		metric.WithDescription("Magic link redemptions by outcome"))
	if err != nil {
		return nil, err
	}
	renewals, err := meter.Int64Counter("auth.session.renewals",
		metric.WithDescription("Token pair renewals from a refresh token by outcome"))
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{linksIssued: linksIssued, logins: logins, renewals: renewals}, nil
}

// LinkIssued records a delivered magic link.
func (m *AuthMetrics) LinkIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.linksIssued.Add(ctx, 1)
}

// Login records a redemption attempt.
func (m *AuthMetrics) Login(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(outcome(success)))
}

// Renewal records a refresh attempt.
func (m *AuthMetrics) Renewal(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.renewals.Add(ctx, 1, metric.WithAttributes(outcome(success)))
}

func outcome(success bool) attribute.KeyValue {
	if success {
		return attribute.String("outcome", "success")
	}
	return attribute.String("outcome", "failure")
}
