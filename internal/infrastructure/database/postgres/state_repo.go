package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
	"github.com/devilmonastery/gatekeeper/internal/pkg/metrics"
)

// StateRepository implements login state storage on PostgreSQL, for
// deployments where any instance must be able to answer a callback but
// Redis is not available.
type StateRepository struct {
	db *sqlx.DB
}

var _ repositories.StateRepository = (*StateRepository)(nil)

// NewStateRepository creates a new PostgreSQL login state repository
func NewStateRepository(db *sqlx.DB) repositories.StateRepository {
	return &StateRepository{db: db}
}

// stateRow represents a login state as stored in the database
type stateRow struct {
	Token          string    `db:"token"`
	Provider       string    `db:"provider"`
	RedirectTarget string    `db:"redirect_target"`
	CodeVerifier   string    `db:"code_verifier"`
	CreatedAt      time.Time `db:"created_at"`
	ExpiresAt      time.Time `db:"expires_at"`
}

// toEntity converts a stateRow to a domain entity
func (r *stateRow) toEntity() *entities.LoginState {
	return &entities.LoginState{
		Token:          r.Token,
		Provider:       r.Provider,
		RedirectTarget: r.RedirectTarget,
		CodeVerifier:   r.CodeVerifier,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
	}
}

// Issue stores a new login state record
func (r *StateRepository) Issue(ctx context.Context, state *entities.LoginState) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("states", "issue", time.Since(start), 1, err)
	}()

	if state.Token == "" {
		err = errors.New("state token is required")
		return err
	}

	query := `
		INSERT INTO login_states (
			token, provider, redirect_target, code_verifier, created_at, expires_at
		) VALUES (
			:token, :provider, :redirect_target, :code_verifier, :created_at, :expires_at
		)`

	row := stateRow{
		Token:          state.Token,
		Provider:       state.Provider,
		RedirectTarget: state.RedirectTarget,
		CodeVerifier:   state.CodeVerifier,
		CreatedAt:      state.CreatedAt,
		ExpiresAt:      state.ExpiresAt,
	}

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to store login state: %w", err)
	}

	return nil
}

// Consume deletes and returns the record in one statement. DELETE with
// RETURNING hands the row to exactly one of any concurrent callers; the
// rest see no rows.
func (r *StateRepository) Consume(ctx context.Context, token string) (*entities.LoginState, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("states", "consume", time.Since(start), rowCount, err)
	}()

	var row stateRow
	query := `
		DELETE FROM login_states
		WHERE token = $1
		RETURNING token, provider, redirect_target, code_verifier, created_at, expires_at`

	err = r.db.GetContext(ctx, &row, query, token)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrStateNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to consume login state: %w", err)
	}

	state := row.toEntity()
	// The row is already gone either way; an expired one is just not usable.
	if state.IsExpired() {
		err = repositories.ErrStateNotFound
		return nil, err
	}

	rowCount = 1
	return state, nil
}

// PurgeExpired removes expired records that were never consumed
func (r *StateRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("states", "purge_expired", time.Since(start), rowsAffected, err)
	}()

	query := `DELETE FROM login_states WHERE expires_at < $1`

	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired login states: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
