package policy

import (
	"testing"

	"github.com/jon4hz/shortlink/internal/database"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	admin := &database.User{ID: 1, Role: database.RoleAdmin}
	other := &database.User{ID: 2, Role: database.RoleUser}

	tests := []struct {
		name    string
		actor   *database.User
		target  *database.User
		change  Change
		allowed bool
		reason  string
		wantErr error
	}{
		{
			name:    "self deletion",
			actor:   admin,
			target:  admin,
			change:  Change{Deletion: true},
			reason:  "cannot delete self",
			wantErr: ErrSelfProtection,
		},
		{
			name:    "self ban",
			actor:   admin,
			target:  admin,
			change:  Change{Banned: lo.ToPtr(true)},
			reason:  "cannot ban/unban self",
			wantErr: ErrSelfProtection,
		},
		{
			name:    "self unban",
			actor:   other,
			target:  other,
			change:  Change{Banned: lo.ToPtr(false)},
			reason:  "cannot ban/unban self",
			wantErr: ErrSelfProtection,
		},
		{
			name:    "self role change",
			actor:   admin,
			target:  admin,
			change:  Change{Role: lo.ToPtr("admin")},
			reason:  "cannot change own role",
			wantErr: ErrSelfProtection,
		},
		{
			name:    "self invalid role hits self rule first",
			actor:   admin,
			target:  admin,
			change:  Change{Role: lo.ToPtr("root")},
			reason:  "cannot change own role",
			wantErr: ErrSelfProtection,
		},
		{
			name:    "self ban and role combined",
			actor:   admin,
			target:  admin,
			change:  Change{Banned: lo.ToPtr(true), Role: lo.ToPtr("user")},
			reason:  "cannot ban/unban self",
			wantErr: ErrSelfProtection,
		},
		{
			name:    "invalid role on other",
			actor:   admin,
			target:  other,
			change:  Change{Role: lo.ToPtr("superuser")},
			reason:  "invalid role",
			wantErr: ErrInvalidRole,
		},
		{
			name:    "ban other",
			actor:   admin,
			target:  other,
			change:  Change{Banned: lo.ToPtr(true)},
			allowed: true,
		},
		{
			name:    "promote other",
			actor:   admin,
			target:  other,
			change:  Change{Role: lo.ToPtr("admin")},
			allowed: true,
		},
		{
			name:    "delete other",
			actor:   admin,
			target:  other,
			change:  Change{Deletion: true},
			allowed: true,
		},
		{
			name:    "empty change on self",
			actor:   admin,
			target:  admin,
			change:  Change{},
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.actor, tt.target, tt.change)
			assert.Equal(t, tt.allowed, d.Allowed)
			if tt.allowed {
				assert.NoError(t, d.Err())
				assert.Empty(t, d.Rule)
				return
			}
			assert.Equal(t, tt.reason, d.Reason)
			assert.NotEmpty(t, d.Rule)
			err := d.Err()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.reason, err.Error())
		})
	}
}

func TestAuthorize_InvalidRoles(t *testing.T) {
	actor := &database.User{ID: 1}
	target := &database.User{ID: 2}
	for _, role := range []string{"", "Admin", "USER", "owner", " admin"} {
		d := Authorize(actor, target, Change{Role: lo.ToPtr(role)})
		assert.False(t, d.Allowed, role)
		assert.ErrorIs(t, d.Err(), ErrInvalidRole, role)
	}
}

type denyAll struct{}

func (denyAll) Name() string { return "deny-all" }

func (denyAll) Evaluate(_, _ *database.User, _ Change) (Decision, bool) {
	return Decision{Reason: "nope"}, true
}

func TestEngine_Order(t *testing.T) {
	e := NewEngine()
	assert.True(t, e.Authorize(nil, nil, Change{Deletion: true}).Allowed)

	e.SetPolicies(denyAll{})
	d := e.Authorize(&database.User{ID: 1}, &database.User{ID: 2}, Change{})
	assert.False(t, d.Allowed)
	assert.Equal(t, "deny-all", d.Rule)
	assert.EqualError(t, d.Err(), "nope")

	e.SetPolicies(append(DefaultPolicies(), denyAll{})...)
	d = e.Authorize(&database.User{ID: 1}, &database.User{ID: 1}, Change{Deletion: true})
	assert.Equal(t, "self-deletion", d.Rule)
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole("user"))
	assert.True(t, ValidRole("admin"))
	assert.False(t, ValidRole("guest"))
}
