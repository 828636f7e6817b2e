package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_DefaultPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx, "", []string{" Admin@Example.com ", ""})
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}

	testCases := []struct {
		name  string
		input AccessInput
		want  bool
	}{
		{"admin lists waitlist", AccessInput{UserID: "u1", Email: "admin@example.com", Action: ActionWaitlistList}, true},
		{"admin email is case-insensitive", AccessInput{UserID: "u1", Email: "ADMIN@example.com", Action: ActionWaitlistList}, true},
		{"non-admin denied", AccessInput{UserID: "u2", Email: "user@example.com", Action: ActionWaitlistList}, false},
		{"unknown action denied", AccessInput{UserID: "u1", Email: "admin@example.com", Action: "users:delete"}, false},
		{"anonymous denied", AccessInput{Action: ActionWaitlistList}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Allow(ctx, tc.input)
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if got != tc.want {
				t.Errorf("Allow = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOPAEvaluator_CustomPolicy(t *testing.T) {
	policy := `package synq.access

default allow := false

allow if endswith(input.user.email, "@synq.dev")
`
	e, err := NewOPAEvaluator(context.Background(), policy, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	ok, err := e.Allow(context.Background(), AccessInput{Email: "ops@synq.dev", Action: ActionWaitlistList})
	if err != nil || !ok {
		t.Errorf("Allow = %v, %v; want true", ok, err)
	}
	ok, _ = e.Allow(context.Background(), AccessInput{Email: "ops@example.com", Action: ActionWaitlistList})
	if ok {
		t.Error("other domains should be denied")
	}
}

func TestOPAEvaluator_Errors(t *testing.T) {
	if _, err := NewOPAEvaluator(context.Background(), "package synq.access\n\nallow if {", nil); err == nil {
		t.Error("invalid Rego should fail to compile")
	}

	nonBool := "package synq.access\n\nallow := \"yes\"\n"
	e, err := NewOPAEvaluator(context.Background(), nonBool, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if _, err := e.Allow(context.Background(), AccessInput{}); err == nil || !strings.Contains(err.Error(), "want bool") {
		t.Errorf("non-boolean decision = %v, want error", err)
	}
}

func TestLoadPolicyFile(t *testing.T) {
	if src, err := LoadPolicyFile(""); err != nil || src != "" {
		t.Errorf("empty path = %q, %v", src, err)
	}
	path := filepath.Join(t.TempDir(), "access.rego")
	if err := os.WriteFile(path, []byte(DefaultPolicy), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src, err := LoadPolicyFile(path)
	if err != nil || src != DefaultPolicy {
		t.Errorf("LoadPolicyFile = %v", err)
	}
	if _, err := LoadPolicyFile(filepath.Join(t.TempDir(), "missing.rego")); err == nil {
		t.Error("missing file should fail")
	}
}
