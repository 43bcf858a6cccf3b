package repositories

import (
	"context"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// Create a new account. Fails with ErrUsernameTaken when the username
	// is already in use.
	Create(ctx context.Context, account *entities.Account) error

	// CreateWithIdentity creates an account and its first linked identity in
	// a single transaction. Neither row is observable without the other.
	// Fails with ErrUsernameTaken or ErrIdentityExists.
	CreateWithIdentity(ctx context.Context, account *entities.Account, identity *entities.Identity) error

	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id string) (*entities.Account, error)

	// GetByUsername retrieves an account by its username
	GetByUsername(ctx context.Context, username string) (*entities.Account, error)

	// Update an existing account
	Update(ctx context.Context, account *entities.Account) error

	// UpdateLastLogin updates the account's last login timestamp
	UpdateLastLogin(ctx context.Context, accountID string, loginTime time.Time) error

	// List accounts with pagination and optional filtering
	List(ctx context.Context, opts ListAccountsOptions) ([]*entities.Account, int64, error)

	// ExistsByUsername checks if an account exists by username
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// ListAccountsOptions provides filtering and pagination options for listing accounts
type ListAccountsOptions struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	Role     *entities.Role // filter by role
	Disabled *bool          // filter by disabled status
	Search   string         // search in username, display_name or email

	// Sorting
	SortBy    string // field to sort by (created_at, username, last_login_at)
	SortOrder string // asc or desc
}
