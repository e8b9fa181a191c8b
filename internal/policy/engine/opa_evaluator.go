package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const accessQuery = "data.mqttmonitor.access.allow"

// Default Rego policy: allow exactly when the caller's role is one of the route's allowed roles.
const defaultRegoPolicy = `package mqttmonitor.access

default allow := false

allow if {
	some role in input.allowed_roles
	role == input.role
}
`

// OPAEvaluator evaluates access policies using OPA Rego.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the default policy plus any extra Rego modules and prepares the access query.
// Extra modules must declare package mqttmonitor.access to take part in the decision.
func NewOPAEvaluator(ctx context.Context, extraModules ...string) (*OPAEvaluator, error) {
	modules := map[string]string{"policy_0.rego": defaultRegoPolicy}
	for i, m := range extraModules {
		modules[fmt.Sprintf("policy_%d.rego", i+1)] = m
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	q, err := rego.New(
		rego.Query(accessQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare access query: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// NewOPAEvaluatorFromFile is NewOPAEvaluator with the module read from path. An empty path uses only the default policy.
func NewOPAEvaluatorFromFile(ctx context.Context, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read access policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(b))
}

// HealthCheck verifies that the prepared query evaluates. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Allow(ctx, AccessInput{Role: "viewer", Action: "healthcheck", AllowedRoles: []string{"viewer"}})
	return err
}

// Allow evaluates the access query. A missing or non-boolean result is a denial.
func (e *OPAEvaluator) Allow(ctx context.Context, in AccessInput) (bool, error) {
	allowed := make([]interface{}, len(in.AllowedRoles))
	for i, r := range in.AllowedRoles {
		allowed[i] = r
	}
	input := map[string]interface{}{
		"role":          in.Role,
		"action":        in.Action,
		"allowed_roles": allowed,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("access policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return v, nil
}
