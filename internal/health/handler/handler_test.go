package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func okPing(context.Context) error { return nil }

func TestChecker(t *testing.T) {
	ctx := context.Background()
	if err := (*Checker)(nil).Check(ctx); err != nil {
		t.Errorf("nil checker: %v", err)
	}
	if err := NewChecker(nil, nil).Check(ctx); err != nil {
		t.Errorf("no deps: %v", err)
	}
	if err := NewChecker(PingFunc(okPing), &mockPolicyChecker{}).Check(ctx); err != nil {
		t.Errorf("healthy deps: %v", err)
	}

	err := NewChecker(PingFunc(func(context.Context) error { return errors.New("refused") }), nil).Check(ctx)
	if err == nil || !strings.HasPrefix(err.Error(), "database:") {
		t.Errorf("ping failure = %v", err)
	}
	err = NewChecker(PingFunc(okPing), &mockPolicyChecker{healthErr: errors.New("compile")}).Check(ctx)
	if err == nil || !strings.HasPrefix(err.Error(), "policy engine:") {
		t.Errorf("policy failure = %v", err)
	}
}

func TestChecker_PassesDeadline(t *testing.T) {
	var hasDeadline bool
	c := NewChecker(PingFunc(func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}), nil)
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !hasDeadline {
		t.Error("ping should run under a timeout")
	}
}

func TestHTTPHandler(t *testing.T) {
	h := NewHTTPHandler(NewChecker(PingFunc(okPing), nil), nil)

	rec := httptest.NewRecorder()
	h.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"pong":true`) {
		t.Errorf("ping = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}

	down := NewHTTPHandler(NewChecker(nil, &mockPolicyChecker{healthErr: errors.New("broken")}), nil)
	rec = httptest.NewRecorder()
	down.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz down = %d, want 503", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "broken") {
		t.Error("failure cause must not be exposed")
	}
}

func TestGRPCServer_Check(t *testing.T) {
	ctx := context.Background()
	resp, err := NewGRPCServer(nil).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}

	resp, err = NewGRPCServer(NewChecker(nil, &mockPolicyChecker{healthErr: errors.New("x")})).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", resp.GetStatus())
	}

	_, err = NewGRPCServer(nil).Check(ctx, &healthpb.HealthCheckRequest{Service: "other"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("unknown service = %v, want NotFound", err)
	}
}
