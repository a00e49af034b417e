package policy

import (
	"errors"

	"github.com/jon4hz/shortlink/internal/database"
)

var (
	// ErrSelfProtection is returned when an actor tries to ban, delete or re-role itself.
	ErrSelfProtection = errors.New("self-protection violation")
	// ErrInvalidRole is returned for roles other than user and admin.
	ErrInvalidRole = errors.New("invalid role")
)

// Change describes the fields a request wants to touch on a target user.
// Nil fields are not part of the request.
type Change struct {
	Banned   *bool
	Role     *string
	Deletion bool
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
	// Rule names the policy that denied the change. Empty when allowed.
	Rule string
	err  error
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision carrying the sentinel it maps to.
func Deny(rule, reason string, err error) Decision {
	return Decision{Rule: rule, Reason: reason, err: err}
}

// Err returns nil for allowed decisions, otherwise an error wrapping
// ErrSelfProtection or ErrInvalidRole.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.err == nil {
		return errors.New(d.Reason)
	}
	return &DeniedError{Reason: d.Reason, err: d.err}
}

// DeniedError carries the reason of a denied decision.
type DeniedError struct {
	Reason string
	err    error
}

func (e *DeniedError) Error() string { return e.Reason }

func (e *DeniedError) Unwrap() error { return e.err }

// Policy is a single authorization rule.
// Evaluate returns a decision and true if the rule governs the change.
type Policy interface {
	Name() string
	Evaluate(actor, target *database.User, change Change) (Decision, bool)
}

// Engine evaluates its policies in order. The first policy that matches governs.
type Engine struct {
	policies []Policy
}

// NewEngine creates a new policy engine.
func NewEngine() *Engine {
	return &Engine{
		policies: []Policy{},
	}
}

// NewDefaultEngine returns an engine with the self-protection and role rules.
func NewDefaultEngine() *Engine {
	e := NewEngine()
	e.SetPolicies(DefaultPolicies()...)
	return e
}

// SetPolicies sets the policies for the engine, replacing any existing ones.
func (e *Engine) SetPolicies(policies ...Policy) {
	e.policies = policies
}

// Authorize checks the change of actor on target against all policies.
func (e *Engine) Authorize(actor, target *database.User, change Change) Decision {
	for _, p := range e.policies {
		if d, ok := p.Evaluate(actor, target, change); ok {
			if !d.Allowed && d.Rule == "" {
				d.Rule = p.Name()
			}
			return d
		}
	}
	return Allow()
}

var defaultEngine = NewDefaultEngine()

// Authorize runs the default rule set.
func Authorize(actor, target *database.User, change Change) Decision {
	return defaultEngine.Authorize(actor, target, change)
}
