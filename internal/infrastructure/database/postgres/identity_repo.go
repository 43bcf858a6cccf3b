package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
	"github.com/devilmonastery/gatekeeper/internal/pkg/idgen"
	"github.com/devilmonastery/gatekeeper/internal/pkg/metrics"
)

// IdentityRepository implements the IdentityRepository interface for PostgreSQL
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository creates a new PostgreSQL identity repository
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// identityRow represents an identity as stored in the database
type identityRow struct {
	ID             string          `db:"id"`
	AccountID      string          `db:"account_id"`
	Provider       string          `db:"provider"`
	ProviderUserID string          `db:"provider_user_id"`
	Email          string          `db:"email"`
	DisplayName    string          `db:"display_name"`
	AvatarURL      string          `db:"avatar_url"`
	Profile        json.RawMessage `db:"profile"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
	LastLoginAt    sql.NullTime    `db:"last_login_at"`
}

// toEntity converts an identityRow to a domain entity
func (r *identityRow) toEntity() *entities.Identity {
	identity := &entities.Identity{
		ID:             r.ID,
		AccountID:      r.AccountID,
		Provider:       r.Provider,
		ProviderUserID: r.ProviderUserID,
		Email:          r.Email,
		DisplayName:    r.DisplayName,
		AvatarURL:      r.AvatarURL,
		Profile:        r.Profile,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}

	if r.LastLoginAt.Valid {
		identity.LastLoginAt = &r.LastLoginAt.Time
	}

	return identity
}

// identityRowFromEntity converts a domain entity to an identityRow
func identityRowFromEntity(identity *entities.Identity) *identityRow {
	row := &identityRow{
		ID:             identity.ID,
		AccountID:      identity.AccountID,
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		Email:          identity.Email,
		DisplayName:    identity.DisplayName,
		AvatarURL:      identity.AvatarURL,
		Profile:        identity.Profile,
		CreatedAt:      identity.CreatedAt,
		UpdatedAt:      identity.UpdatedAt,
	}

	if identity.LastLoginAt != nil {
		row.LastLoginAt = sql.NullTime{Time: *identity.LastLoginAt, Valid: true}
	}

	return row
}

const identityColumns = `id, account_id, provider, provider_user_id, email,
	       display_name, avatar_url, profile, created_at, updated_at, last_login_at`

const insertIdentityQuery = `INSERT INTO identities (
			id, account_id, provider, provider_user_id, email,
			display_name, avatar_url, profile, created_at, updated_at, last_login_at
		) VALUES (
			:id, :account_id, :provider, :provider_user_id, :email,
			:display_name, :avatar_url, :profile, :created_at, :updated_at, :last_login_at
		)`

// Create creates a new identity for an existing account
func (r *IdentityRepository) Create(ctx context.Context, identity *entities.Identity) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("identity", "create", time.Since(start), 1, err)
	}()

	if identity.ID == "" {
		identity.ID = idgen.GenerateID()
	}

	now := time.Now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now

	_, err = r.db.NamedExecContext(ctx, insertIdentityQuery, identityRowFromEntity(identity))
	if err != nil {
		if isUniqueViolation(err, constraintIdentitiesPairKey) {
			err = repositories.ErrIdentityExists
			return err
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}

	return nil
}

// GetByProviderUserID retrieves an identity by provider and provider user ID.
// Returns (nil, nil) when no identity exists.
func (r *IdentityRepository) GetByProviderUserID(ctx context.Context, provider, providerUserID string) (*entities.Identity, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("identity", "get_by_provider_user_id", time.Since(start), rowCount, err)
	}()

	var row identityRow
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE provider = $1 AND provider_user_id = $2
		LIMIT 1`

	err = r.db.GetContext(ctx, &row, query, provider, providerUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get identity by provider user ID: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// ListByAccountID retrieves all identities linked to an account
func (r *IdentityRepository) ListByAccountID(ctx context.Context, accountID string) ([]*entities.Identity, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("identity", "list_by_account_id", time.Since(start), rowCount, err)
	}()

	var rows []identityRow
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE account_id = $1
		ORDER BY created_at ASC`

	err = r.db.SelectContext(ctx, &rows, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities by account ID: %w", err)
	}

	rowCount = int64(len(rows))

	identities := make([]*entities.Identity, len(rows))
	for i, row := range rows {
		identities[i] = row.toEntity()
	}

	return identities, nil
}

// Update updates an existing identity's profile snapshot and login time
func (r *IdentityRepository) Update(ctx context.Context, identity *entities.Identity) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("identity", "update", time.Since(start), rowsAffected, err)
	}()

	identity.UpdatedAt = time.Now()

	row := identityRowFromEntity(identity)

	query := `
		UPDATE identities
		SET email = :email,
		    display_name = :display_name,
		    avatar_url = :avatar_url,
		    profile = :profile,
		    updated_at = :updated_at,
		    last_login_at = :last_login_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrIdentityNotFound
		return err
	}

	return nil
}

// Delete deletes an identity
func (r *IdentityRepository) Delete(ctx context.Context, identityID string) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("identity", "delete", time.Since(start), rowsAffected, err)
	}()

	query := `DELETE FROM identities WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, identityID)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrIdentityNotFound
		return err
	}

	return nil
}

// CountByAccountID counts how many identities an account has linked
func (r *IdentityRepository) CountByAccountID(ctx context.Context, accountID string) (int, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("identity", "count_by_account_id", time.Since(start), rowCount, err)
	}()

	var count int
	query := `SELECT COUNT(*) FROM identities WHERE account_id = $1`

	err = r.db.GetContext(ctx, &count, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to count identities: %w", err)
	}

	rowCount = int64(count)
	return count, nil
}

// Ensure IdentityRepository implements repositories.IdentityRepository
var _ repositories.IdentityRepository = (*IdentityRepository)(nil)
