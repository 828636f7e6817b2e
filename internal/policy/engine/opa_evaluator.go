package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
)

const (
	policyQuery  = "data.synq.access.allow"
	policyModule = "access.rego"
)

// DefaultPolicy lets configured admins list the waitlist and denies everything else.
const DefaultPolicy = `package synq.access

default allow := false

allow if {
	input.action == "waitlist:list"
	input.user.email in input.admins
}
`

// OPAEvaluator evaluates the access policy with an embedded OPA Rego engine.
// The policy is compiled once at construction.
type OPAEvaluator struct {
	query  rego.PreparedEvalQuery
	admins []string
}

// NewOPAEvaluator compiles policy (DefaultPolicy when empty). The policy must define data.synq.access.allow.
// admins is exposed to the policy as input.admins; entries are lower-cased.
func NewOPAEvaluator(ctx context.Context, policy string, admins []string) (*OPAEvaluator, error) {
	if strings.TrimSpace(policy) == "" {
		policy = DefaultPolicy
	}
	q, err := rego.New(
		rego.Query(policyQuery),
		rego.Module(policyModule, policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile access policy: %w", err)
	}
	normalized := make([]string, 0, len(admins))
	for _, a := range admins {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			normalized = append(normalized, a)
		}
	}
	return &OPAEvaluator{query: q, admins: normalized}, nil
}

// LoadPolicyFile returns the Rego source at path, or "" when path is empty.
func LoadPolicyFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read policy file: %w", err)
	}
	return string(b), nil
}

// Allow evaluates the policy for in. A result that is not a boolean counts as an error.
func (e *OPAEvaluator) Allow(ctx context.Context, in AccessInput) (bool, error) {
	admins := make([]any, 0, len(e.admins))
	for _, a := range e.admins {
		admins = append(admins, a)
	}
	input := map[string]any{
		"action": in.Action,
		"user": map[string]any{
			"id":    in.UserID,
			"email": strings.ToLower(strings.TrimSpace(in.Email)),
		},
		"admins": admins,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("access policy returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("access policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

// HealthCheck evaluates the compiled policy against a minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Allow(ctx, AccessInput{Action: "health:check"})
	return err
}
