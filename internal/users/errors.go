package users

import (
	"errors"

	"github.com/jon4hz/shortlink/internal/policy"
)

var (
	// ErrNotFound is returned when no user matches the criteria.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the email is already taken.
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrSelfProtection is returned when an actor tries to ban, delete or re-role itself.
	ErrSelfProtection = policy.ErrSelfProtection
	// ErrInvalidRole is returned for roles other than user and admin.
	ErrInvalidRole = policy.ErrInvalidRole
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation error")
	// ErrStoreUnavailable wraps errors of the database.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrCacheInvalidation is returned alongside a result when stale cache
	// entries could not be dropped after a write. The write itself is kept.
	ErrCacheInvalidation = errors.New("cache invalidation failed")
	// ErrForbidden is returned when the actor lacks the admin role.
	ErrForbidden = errors.New("forbidden")
	// ErrBanned is returned when a banned user tries to authenticate.
	ErrBanned = errors.New("user is banned")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
)
