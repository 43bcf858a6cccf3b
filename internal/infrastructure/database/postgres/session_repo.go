package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
	"github.com/devilmonastery/gatekeeper/internal/pkg/idgen"
	"github.com/devilmonastery/gatekeeper/internal/pkg/metrics"
)

// SessionRepository implements the SessionRepository interface for PostgreSQL
type SessionRepository struct {
	db *sqlx.DB
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repositories.SessionRepository {
	return &SessionRepository{
		db: db,
	}
}

// sessionRow represents a session as stored in the database
type sessionRow struct {
	ID        string         `db:"id"`
	Token     string         `db:"token"`
	AccountID string         `db:"account_id"`
	IPAddress sql.NullString `db:"ip_address"`
	UserAgent sql.NullString `db:"user_agent"`
	CreatedAt time.Time      `db:"created_at"`
	ExpiresAt time.Time      `db:"expires_at"`
	RevokedAt sql.NullTime   `db:"revoked_at"`
}

// toEntity converts a sessionRow to a domain entity
func (r *sessionRow) toEntity() *entities.Session {
	session := &entities.Session{
		ID:        r.ID,
		Token:     r.Token,
		AccountID: r.AccountID,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}

	if r.IPAddress.Valid {
		session.IPAddress = &r.IPAddress.String
	}

	if r.UserAgent.Valid {
		session.UserAgent = &r.UserAgent.String
	}

	if r.RevokedAt.Valid {
		session.RevokedAt = &r.RevokedAt.Time
	}

	return session
}

// sessionRowFromEntity converts a domain entity to a sessionRow
func sessionRowFromEntity(session *entities.Session) *sessionRow {
	row := &sessionRow{
		ID:        session.ID,
		Token:     session.Token,
		AccountID: session.AccountID,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}

	if session.IPAddress != nil {
		row.IPAddress = sql.NullString{String: *session.IPAddress, Valid: true}
	}

	if session.UserAgent != nil {
		row.UserAgent = sql.NullString{String: *session.UserAgent, Valid: true}
	}

	if session.RevokedAt != nil {
		row.RevokedAt = sql.NullTime{Time: *session.RevokedAt, Valid: true}
	}

	return row
}

const sessionColumns = `id, token, account_id, ip_address, user_agent,
	       created_at, expires_at, revoked_at`

// Create persists a new session
func (r *SessionRepository) Create(ctx context.Context, session *entities.Session) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("session", "create", time.Since(start), 1, err)
	}()

	if session.ID == "" {
		session.ID = idgen.GenerateID()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO sessions (
			id, token, account_id, ip_address, user_agent,
			created_at, expires_at, revoked_at
		) VALUES (
			:id, :token, :account_id, :ip_address, :user_agent,
			:created_at, :expires_at, :revoked_at
		)`

	_, err = r.db.NamedExecContext(ctx, query, sessionRowFromEntity(session))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by its ID
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("session", "get_by_id", time.Since(start), rowCount, err)
	}()

	var row sessionRow
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	err = r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrSessionNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// GetByToken retrieves a session by its opaque token
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*entities.Session, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("session", "get_by_token", time.Since(start), rowCount, err)
	}()

	var row sessionRow
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token = $1`

	err = r.db.GetContext(ctx, &row, query, token)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrSessionNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session by token: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// Revoke marks a session as revoked at the given time
func (r *SessionRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("session", "revoke", time.Since(start), rowsAffected, err)
	}()

	query := `UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrSessionNotFound
		return err
	}

	return nil
}

// RevokeAllForAccount revokes every active session belonging to an account
func (r *SessionRepository) RevokeAllForAccount(ctx context.Context, accountID string, at time.Time) (int64, error) {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("session", "revoke_all_for_account", time.Since(start), rowsAffected, err)
	}()

	query := `UPDATE sessions SET revoked_at = $1 WHERE account_id = $2 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, at, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// DeleteExpired removes sessions that expired before the given time
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("session", "delete_expired", time.Since(start), rowsAffected, err)
	}()

	query := `DELETE FROM sessions WHERE expires_at < $1`

	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// List retrieves sessions with pagination and filtering
func (r *SessionRepository) List(ctx context.Context, opts repositories.ListSessionsOptions) ([]*entities.Session, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("session", "list", time.Since(start), rowCount, err)
	}()

	var conditions []string
	var args []interface{}
	paramIndex := 1

	if opts.AccountID != nil {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", paramIndex))
		args = append(args, *opts.AccountID)
		paramIndex++
	}

	if opts.ActiveOnly {
		conditions = append(conditions, fmt.Sprintf("revoked_at IS NULL AND expires_at > $%d", paramIndex))
		args = append(args, time.Now())
		paramIndex++
	}

	if opts.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", paramIndex))
		args = append(args, *opts.CreatedAfter)
		paramIndex++
	}

	if opts.CreatedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", paramIndex))
		args = append(args, *opts.CreatedBefore)
		paramIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := "created_at DESC" // default
	if opts.SortBy != "" {
		sortFields := map[string]string{
			"created_at": "created_at",
			"expires_at": "expires_at",
		}
		if dbField, exists := sortFields[opts.SortBy]; exists {
			direction := "DESC"
			if opts.SortOrder == "asc" {
				direction = "ASC"
			}
			orderBy = fmt.Sprintf("%s %s", dbField, direction)
		}
	}

	query := fmt.Sprintf(`
		SELECT `+sessionColumns+`
		FROM sessions
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`, whereClause, orderBy, paramIndex, paramIndex+1)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50 // default page size
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)

	var rows []sessionRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	rowCount = int64(len(rows))

	sessions := make([]*entities.Session, len(rows))
	for i, row := range rows {
		sessions[i] = row.toEntity()
	}

	return sessions, nil
}
