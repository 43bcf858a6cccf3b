package services

import (
	"errors"

	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
)

// Login flow failures. All of them are terminal: the flow is never retried,
// the user gets a generic failure response, and the detail stays in logs and
// audit records.
var (
	// ErrProviderNotFound is returned when no provider is registered under
	// the requested name
	ErrProviderNotFound = errors.New("provider not found")

	// ErrInvalidState is returned when the state token is absent, already
	// consumed, expired, or issued for a different provider
	ErrInvalidState = errors.New("invalid or expired login state")

	// ErrProviderExchange is returned when the authorization code could not
	// be exchanged at the provider's token endpoint
	ErrProviderExchange = errors.New("provider code exchange failed")

	// ErrProfileFetch is returned when the profile could not be fetched with
	// the access token
	ErrProfileFetch = errors.New("provider profile fetch failed")

	// ErrAccountCreation is returned when the profile could not be resolved
	// to a local account
	ErrAccountCreation = errors.New("account creation failed")
)

// LoginFailureReason returns a stable reason string for a login failure.
// This is used for audit metadata and metrics labels in the service layer.
func LoginFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrProviderNotFound):
		return "provider_not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrProviderExchange):
		return "exchange_failed"
	case errors.Is(err, ErrProfileFetch):
		return "profile_fetch_failed"
	case errors.Is(err, ErrAccountCreation):
		return "account_creation_failed"
	case errors.Is(err, repositories.ErrAccountDisabled):
		return "account_disabled"
	default:
		return "internal_error"
	}
}

// IsAccountDisabled checks if the error indicates a disabled account.
func IsAccountDisabled(err error) bool {
	return errors.Is(err, repositories.ErrAccountDisabled)
}
