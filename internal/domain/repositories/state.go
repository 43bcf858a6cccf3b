package repositories

import (
	"context"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
)

// StateRepository defines the interface for login state token storage.
// Implementations must make Consume atomic: under concurrent callbacks
// replaying the same token, at most one caller gets the record and every
// other caller gets ErrStateNotFound.
type StateRepository interface {
	// Issue stores a new login state record with its expiry
	Issue(ctx context.Context, state *entities.LoginState) error

	// Consume looks up and deletes the record for the given token in one
	// atomic step. Fails with ErrStateNotFound when the token is absent,
	// already consumed, or past its expiry.
	Consume(ctx context.Context, token string) (*entities.LoginState, error)

	// PurgeExpired removes expired records that were never consumed
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}
