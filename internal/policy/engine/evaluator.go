package engine

import "context"

// AccessInput is the document an access policy is evaluated against.
type AccessInput struct {
	Role         string
	Action       string
	AllowedRoles []string
}

// Evaluator decides whether a role may perform an action using OPA or other engines.
type Evaluator interface {
	// Allow reports whether input is permitted. Callers treat an error as a denial.
	Allow(ctx context.Context, input AccessInput) (bool, error)
}
