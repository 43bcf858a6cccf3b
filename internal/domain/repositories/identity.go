package repositories

import (
	"context"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
)

// IdentityRepository defines the interface for external identity data access.
// Supports multi-provider linking where an account can accumulate identities
// from several providers (GitHub, Twitter, Google, ...).
type IdentityRepository interface {
	// Create creates a new identity for an account. Fails with
	// ErrIdentityExists when the (provider, provider_user_id) pair is
	// already linked.
	Create(ctx context.Context, identity *entities.Identity) error

	// GetByProviderUserID retrieves an identity by provider and the
	// provider's user ID. This is the primary lookup during login; it
	// returns (nil, nil) when no identity exists so callers can
	// distinguish "new user" from a storage error.
	GetByProviderUserID(ctx context.Context, provider, providerUserID string) (*entities.Identity, error)

	// ListByAccountID retrieves all identities linked to an account
	ListByAccountID(ctx context.Context, accountID string) ([]*entities.Identity, error)

	// Update updates an existing identity (profile snapshot, last_login_at)
	Update(ctx context.Context, identity *entities.Identity) error

	// Delete removes an identity link
	Delete(ctx context.Context, identityID string) error

	// CountByAccountID counts how many identities an account has linked
	CountByAccountID(ctx context.Context, accountID string) (int, error)
}
