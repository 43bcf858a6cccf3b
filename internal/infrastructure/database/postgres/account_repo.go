package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
	"github.com/devilmonastery/gatekeeper/internal/pkg/idgen"
	"github.com/devilmonastery/gatekeeper/internal/pkg/metrics"
)

// AccountRepository implements the AccountRepository interface for PostgreSQL
type AccountRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

var _ repositories.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *sqlx.DB) repositories.AccountRepository {
	return &AccountRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "account")),
	}
}

// accountRow represents an account as stored in the database
type accountRow struct {
	ID           string         `db:"id"`
	Username     string         `db:"username"`
	Email        sql.NullString `db:"email"`
	DisplayName  string         `db:"display_name"`
	AvatarURL    sql.NullString `db:"avatar_url"`
	PasswordHash sql.NullString `db:"password_hash"`
	Role         string         `db:"role"`
	Disabled     bool           `db:"disabled"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLoginAt  sql.NullTime   `db:"last_login_at"`
}

// toEntity converts an accountRow to a domain entity
func (r *accountRow) toEntity() *entities.Account {
	account := &entities.Account{
		ID:          r.ID,
		Username:    r.Username,
		DisplayName: r.DisplayName,
		Role:        entities.Role(r.Role),
		Disabled:    r.Disabled,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if r.Email.Valid {
		account.Email = &r.Email.String
	}

	if r.AvatarURL.Valid {
		account.AvatarURL = &r.AvatarURL.String
	}

	if r.PasswordHash.Valid {
		account.PasswordHash = &r.PasswordHash.String
	}

	if r.LastLoginAt.Valid {
		account.LastLoginAt = &r.LastLoginAt.Time
	}

	return account
}

// accountRowFromEntity converts a domain entity to an accountRow
func accountRowFromEntity(account *entities.Account) *accountRow {
	row := &accountRow{
		ID:          account.ID,
		Username:    account.Username,
		DisplayName: account.DisplayName,
		Role:        string(account.Role),
		Disabled:    account.Disabled,
		CreatedAt:   account.CreatedAt,
		UpdatedAt:   account.UpdatedAt,
	}

	if account.Email != nil {
		row.Email = sql.NullString{String: *account.Email, Valid: true}
	}

	if account.AvatarURL != nil {
		row.AvatarURL = sql.NullString{String: *account.AvatarURL, Valid: true}
	}

	if account.PasswordHash != nil {
		row.PasswordHash = sql.NullString{String: *account.PasswordHash, Valid: true}
	}

	if account.LastLoginAt != nil {
		row.LastLoginAt = sql.NullTime{Time: *account.LastLoginAt, Valid: true}
	}

	return row
}

const accountColumns = `id, username, email, display_name, avatar_url, password_hash,
	       role, disabled, created_at, updated_at, last_login_at`

const insertAccountQuery = `INSERT INTO accounts (
			id, username, email, display_name, avatar_url, password_hash,
			role, disabled, created_at, updated_at, last_login_at
		) VALUES (
			:id, :username, :email, :display_name, :avatar_url, :password_hash,
			:role, :disabled, :created_at, :updated_at, :last_login_at
		)`

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *entities.Account) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("account", "create", time.Since(start), 1, err)
	}()

	if account.ID == "" {
		account.ID = idgen.GenerateID()
	}
	if account.Role == "" {
		account.Role = entities.RoleUser
	}

	r.log.Debug("creating account",
		slog.String("id", account.ID),
		slog.String("username", account.Username),
		slog.String("role", string(account.Role)))

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	row := accountRowFromEntity(account)

	_, err = r.db.NamedExecContext(ctx, insertAccountQuery, row)
	if err != nil {
		if isUniqueViolation(err, constraintAccountsUsername) {
			err = repositories.ErrUsernameTaken
			return err
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// CreateWithIdentity creates an account and its first linked identity in a
// single transaction. When two callbacks race on the same provider user, the
// identity constraint aborts the loser's transaction and no orphan account
// remains.
func (r *AccountRepository) CreateWithIdentity(ctx context.Context, account *entities.Account, identity *entities.Identity) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("account", "create_with_identity", time.Since(start), 2, err)
	}()

	if account.ID == "" {
		account.ID = idgen.GenerateID()
	}
	if account.Role == "" {
		account.Role = entities.RoleUser
	}
	if identity.ID == "" {
		identity.ID = idgen.GenerateID()
	}
	identity.AccountID = account.ID

	r.log.Debug("creating account with identity",
		slog.String("id", account.ID),
		slog.String("username", account.Username),
		slog.String("identity", identity.Key()))

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	identity.CreatedAt = now
	identity.UpdatedAt = now

	tx, txErr := r.db.BeginTxx(ctx, nil)
	if txErr != nil {
		err = fmt.Errorf("failed to begin transaction: %w", txErr)
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, insertAccountQuery, accountRowFromEntity(account))
	if err != nil {
		if isUniqueViolation(err, constraintAccountsUsername) {
			err = repositories.ErrUsernameTaken
			return err
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, insertIdentityQuery, identityRowFromEntity(identity))
	if err != nil {
		if isUniqueViolation(err, constraintIdentitiesPairKey) {
			err = repositories.ErrIdentityExists
			return err
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit account creation: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID. Disabled accounts are returned;
// callers decide whether disabled means unusable.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entities.Account, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("account", "get_by_id", time.Since(start), rowCount, err)
	}()

	var row accountRow
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	err = r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrAccountNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// GetByUsername retrieves an account by its username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*entities.Account, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("account", "get_by_username", time.Since(start), rowCount, err)
	}()

	var row accountRow
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`

	err = r.db.GetContext(ctx, &row, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrAccountNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get account by username: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// Update an existing account
func (r *AccountRepository) Update(ctx context.Context, account *entities.Account) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("account", "update", time.Since(start), rowsAffected, err)
	}()

	r.log.Debug("updating account",
		slog.String("id", account.ID),
		slog.String("username", account.Username))

	account.UpdatedAt = time.Now()

	row := accountRowFromEntity(account)

	query := `
		UPDATE accounts SET
			username = :username,
			email = :email,
			display_name = :display_name,
			avatar_url = :avatar_url,
			password_hash = :password_hash,
			role = :role,
			disabled = :disabled,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if isUniqueViolation(err, constraintAccountsUsername) {
			err = repositories.ErrUsernameTaken
			return err
		}
		return fmt.Errorf("failed to update account: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrAccountNotFound
		return err
	}

	return nil
}

// UpdateLastLogin updates the account's last login timestamp
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, accountID string, loginTime time.Time) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("account", "update_last_login", time.Since(start), rowsAffected, err)
	}()

	query := `UPDATE accounts SET last_login_at = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, loginTime, time.Now(), accountID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrAccountNotFound
		return err
	}

	return nil
}

// List accounts with pagination and optional filtering
func (r *AccountRepository) List(ctx context.Context, opts repositories.ListAccountsOptions) ([]*entities.Account, int64, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("account", "list", time.Since(start), rowCount, err)
	}()

	// Build query conditions
	var conditions []string
	var args []interface{}
	paramIndex := 1 // PostgreSQL uses $1, $2, etc.

	if opts.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", paramIndex))
		args = append(args, string(*opts.Role))
		paramIndex++
	}

	if opts.Disabled != nil {
		conditions = append(conditions, fmt.Sprintf("disabled = $%d", paramIndex))
		args = append(args, *opts.Disabled)
		paramIndex++
	}

	if opts.Search != "" {
		conditions = append(conditions,
			fmt.Sprintf("(username ILIKE $%d OR display_name ILIKE $%d OR email ILIKE $%d)",
				paramIndex, paramIndex+1, paramIndex+2))
		searchPattern := "%" + opts.Search + "%"
		args = append(args, searchPattern, searchPattern, searchPattern)
		paramIndex += 3
	}

	// Build WHERE clause
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total records
	countQuery := "SELECT COUNT(*) FROM accounts " + whereClause
	var total int64
	err = r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	// Build ORDER BY clause
	orderBy := "created_at DESC" // default
	if opts.SortBy != "" {
		sortFields := map[string]string{
			"created_at":    "created_at",
			"username":      "username",
			"last_login_at": "last_login_at",
		}
		if dbField, exists := sortFields[opts.SortBy]; exists {
			direction := "DESC"
			if opts.SortOrder == "asc" {
				direction = "ASC"
			}
			orderBy = fmt.Sprintf("%s %s", dbField, direction)
		}
	}

	// Build main query with pagination
	query := fmt.Sprintf(`
		SELECT `+accountColumns+`
		FROM accounts
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`, whereClause, orderBy, paramIndex, paramIndex+1)

	// Set default pagination
	limit := opts.Limit
	if limit <= 0 {
		limit = 50 // default page size
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)

	var rows []accountRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}

	rowCount = int64(len(rows))

	accounts := make([]*entities.Account, len(rows))
	for i, row := range rows {
		accounts[i] = row.toEntity()
	}

	return accounts, total, nil
}

// ExistsByUsername checks if an account exists by username
func (r *AccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("account", "exists_by_username", time.Since(start), rowCount, err)
	}()

	var count int
	query := `SELECT COUNT(*) FROM accounts WHERE username = $1`

	err = r.db.GetContext(ctx, &count, query, username)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}

	rowCount = int64(count)
	return count > 0, nil
}
