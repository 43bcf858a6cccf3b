package repositories

import (
	"context"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
)

// SessionRepository defines the interface for browser session data access
type SessionRepository interface {
	// Create persists a new session
	Create(ctx context.Context, session *entities.Session) error

	// GetByID retrieves a session by its ID
	GetByID(ctx context.Context, id string) (*entities.Session, error)

	// GetByToken retrieves a session by its opaque token.
	// This is the hot path for every authenticated request.
	GetByToken(ctx context.Context, token string) (*entities.Session, error)

	// Revoke marks a session as revoked at the given time
	Revoke(ctx context.Context, id string, at time.Time) error

	// RevokeAllForAccount revokes every active session belonging to an account
	// and returns the number of sessions revoked
	RevokeAllForAccount(ctx context.Context, accountID string, at time.Time) (int64, error)

	// DeleteExpired removes sessions that expired before the given time
	// and returns the number of rows deleted
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)

	// List retrieves sessions with pagination and filtering
	List(ctx context.Context, opts ListSessionsOptions) ([]*entities.Session, error)
}

// ListSessionsOptions provides filtering and pagination for session listing
type ListSessionsOptions struct {
	Limit         int
	Offset        int
	AccountID     *string
	ActiveOnly    bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SortBy        string // created_at, expires_at
	SortOrder     string // asc, desc
}
