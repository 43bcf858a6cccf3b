package repositories

import "errors"

// Domain-specific repository errors
var (
	// ErrAccountNotFound is returned when an account cannot be found
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountDisabled is returned when an account exists but is disabled
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrUsernameTaken is returned when creating an account with a username
	// that already exists
	ErrUsernameTaken = errors.New("username already taken")

	// ErrIdentityNotFound is returned when an external identity cannot be found
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrIdentityExists is returned when an identity with the same
	// (provider, provider_user_id) pair already exists
	ErrIdentityExists = errors.New("identity already linked")

	// ErrStateNotFound is returned when a login state token is absent,
	// already consumed, or expired
	ErrStateNotFound = errors.New("login state not found or expired")

	// ErrSessionNotFound is returned when a session cannot be found
	ErrSessionNotFound = errors.New("session not found")

	// ErrAuditLogNotFound is returned when an audit log cannot be found
	ErrAuditLogNotFound = errors.New("audit log not found")
)
