package policy

import (
	"github.com/jon4hz/shortlink/internal/database"
)

// DefaultPolicies returns the rules in evaluation order.
func DefaultPolicies() []Policy {
	return []Policy{
		selfDeletion{},
		selfBan{},
		selfRole{},
		validRole{},
	}
}

func isSelf(actor, target *database.User) bool {
	return actor != nil && target != nil && actor.ID == target.ID
}

type selfDeletion struct{}

func (selfDeletion) Name() string { return "self-deletion" }

func (p selfDeletion) Evaluate(actor, target *database.User, change Change) (Decision, bool) {
	if change.Deletion && isSelf(actor, target) {
		return Deny(p.Name(), "cannot delete self", ErrSelfProtection), true
	}
	return Decision{}, false
}

type selfBan struct{}

func (selfBan) Name() string { return "self-ban" }

func (p selfBan) Evaluate(actor, target *database.User, change Change) (Decision, bool) {
	if change.Banned != nil && isSelf(actor, target) {
		return Deny(p.Name(), "cannot ban/unban self", ErrSelfProtection), true
	}
	return Decision{}, false
}

type selfRole struct{}

func (selfRole) Name() string { return "self-role" }

func (p selfRole) Evaluate(actor, target *database.User, change Change) (Decision, bool) {
	if change.Role != nil && isSelf(actor, target) {
		return Deny(p.Name(), "cannot change own role", ErrSelfProtection), true
	}
	return Decision{}, false
}

type validRole struct{}

func (validRole) Name() string { return "valid-role" }

func (p validRole) Evaluate(_, _ *database.User, change Change) (Decision, bool) {
	if change.Role == nil {
		return Decision{}, false
	}
	if !ValidRole(*change.Role) {
		return Deny(p.Name(), "invalid role", ErrInvalidRole), true
	}
	return Decision{}, false
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch database.Role(role) {
	case database.RoleUser, database.RoleAdmin:
		return true
	}
	return false
}
