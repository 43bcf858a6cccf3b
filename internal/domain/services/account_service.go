package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
	"github.com/devilmonastery/gatekeeper/internal/pkg/metrics"
	"github.com/devilmonastery/gatekeeper/internal/providers"
)

// AccountService provides business logic for account management and for
// linking provider identities to local accounts.
type AccountService struct {
	accountRepo  repositories.AccountRepository
	identityRepo repositories.IdentityRepository
	auditRepo    repositories.AuditRepository
}

// NewAccountService creates a new account service
func NewAccountService(
	accountRepo repositories.AccountRepository,
	identityRepo repositories.IdentityRepository,
	auditRepo repositories.AuditRepository,
) *AccountService {
	return &AccountService{
		accountRepo:  accountRepo,
		identityRepo: identityRepo,
		auditRepo:    auditRepo,
	}
}

// auditLog is a helper method that logs audit events if auditRepo is available
func (s *AccountService) auditLog(ctx context.Context, auditLog *entities.AuditLog) error {
	if s.auditRepo == nil {
		return nil // Skip audit logging if not configured
	}
	return s.auditRepo.Create(ctx, auditLog)
}

// Resolve maps a provider profile to a local account, creating the account on
// first login. Returns the account and whether it was created by this call.
//
// The identity lookup keys on the provider's immutable user ID, never email:
// emails change and some providers report none at all. Two concurrent first
// logins for the same identity are serialized by the database unique
// constraint; the loser re-reads the winner's rows instead of failing.
func (s *AccountService) Resolve(ctx context.Context, provider string, profile *providers.Profile) (*entities.Account, bool, error) {
	identity, err := s.identityRepo.GetByProviderUserID(ctx, provider, profile.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up identity: %w", err)
	}

	if identity != nil {
		account, err := s.refreshIdentity(ctx, identity, profile)
		if err != nil {
			return nil, false, err
		}
		return account, false, nil
	}

	account, err := s.createWithIdentity(ctx, provider, profile)
	if err != nil {
		// Another callback for the same identity may have won the race; the
		// constraint aborted ours, so adopt the winner's rows.
		if errors.Is(err, repositories.ErrIdentityExists) {
			identity, lookupErr := s.identityRepo.GetByProviderUserID(ctx, provider, profile.ID)
			if lookupErr != nil || identity == nil {
				return nil, false, fmt.Errorf("failed to re-read identity after race: %w", err)
			}
			winner, lookupErr := s.accountRepo.GetByID(ctx, identity.AccountID)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("failed to load account after race: %w", lookupErr)
			}
			if winner.Disabled {
				return nil, false, repositories.ErrAccountDisabled
			}
			winner.PasswordHash = nil
			return winner, false, nil
		}
		return nil, false, err
	}

	return account, true, nil
}

// refreshIdentity updates the stored profile snapshot for a returning
// identity and returns the owning account.
func (s *AccountService) refreshIdentity(ctx context.Context, identity *entities.Identity, profile *providers.Profile) (*entities.Account, error) {
	now := time.Now()

	identity.Email = profile.Email
	identity.DisplayName = profile.DisplayName
	identity.AvatarURL = profile.AvatarURL
	identity.Profile = profile.Raw
	identity.UpdatedAt = now
	identity.LastLoginAt = &now

	if err := s.identityRepo.Update(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to update identity: %w", err)
	}

	account, err := s.accountRepo.GetByID(ctx, identity.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if account.Disabled {
		auditLog := entities.NewAuditLog(&account.ID, entities.ActionLoginFailed, entities.ResourceAccount).
			WithResourceID(account.ID).
			WithMetadata("identity", identity.Key()).
			WithMetadata("reason", "account_disabled")
		s.auditLog(ctx, auditLog)

		return nil, repositories.ErrAccountDisabled
	}

	if err := s.accountRepo.UpdateLastLogin(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	account.LastLoginAt = &now

	// The account avatar follows the most recently used identity.
	if profile.AvatarURL != "" && (account.AvatarURL == nil || *account.AvatarURL != profile.AvatarURL) {
		account.AvatarURL = &profile.AvatarURL
		account.UpdatedAt = now
		if err := s.accountRepo.Update(ctx, account); err != nil {
			return nil, fmt.Errorf("failed to update account: %w", err)
		}
	}

	account.PasswordHash = nil
	return account, nil
}

// createWithIdentity creates a new account plus its first linked identity in
// a single transaction. Username collisions get exactly one retry with a
// deterministic suffix; a second collision fails the login.
func (s *AccountService) createWithIdentity(ctx context.Context, provider string, profile *providers.Profile) (*entities.Account, error) {
	now := time.Now()
	username := deriveUsername(profile)

	account := &entities.Account{
		Username:    username,
		DisplayName: profile.DisplayName,
		Role:        entities.RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: &now,
	}
	if account.DisplayName == "" {
		account.DisplayName = profile.Login
	}
	if profile.Email != "" {
		email := profile.Email
		account.Email = &email
	}
	if profile.AvatarURL != "" {
		avatar := profile.AvatarURL
		account.AvatarURL = &avatar
	}

	identity := &entities.Identity{
		Provider:       provider,
		ProviderUserID: profile.ID,
		Email:          profile.Email,
		DisplayName:    profile.DisplayName,
		AvatarURL:      profile.AvatarURL,
		Profile:        profile.Raw,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastLoginAt:    &now,
	}

	err := s.accountRepo.CreateWithIdentity(ctx, account, identity)
	if errors.Is(err, repositories.ErrUsernameTaken) {
		account.Username = username + "-" + usernameSuffix(profile.ID)
		err = s.accountRepo.CreateWithIdentity(ctx, account, identity)
		if errors.Is(err, repositories.ErrUsernameTaken) {
			return nil, fmt.Errorf("failed to create account: username %q taken twice: %w", account.Username, err)
		}
	}
	if err != nil {
		return nil, err
	}

	metrics.AccountsCreated.WithLabelValues(provider).Inc()

	auditLog := entities.NewAuditLog(&account.ID, entities.ActionAccountCreated, entities.ResourceAccount).
		WithResourceID(account.ID).
		WithMetadata("username", account.Username).
		WithMetadata("provider", provider)
	s.auditLog(ctx, auditLog)

	auditLog = entities.NewAuditLog(&account.ID, entities.ActionIdentityLinked, entities.ResourceIdentity).
		WithResourceID(identity.ID).
		WithMetadata("identity", identity.Key())
	s.auditLog(ctx, auditLog)

	account.PasswordHash = nil
	return account, nil
}

// deriveUsername builds a username from the profile: slug of the display
// name, else the provider login, else "user".
func deriveUsername(profile *providers.Profile) string {
	if username := slug.Make(profile.DisplayName); username != "" {
		return username
	}
	if username := slug.Make(profile.Login); username != "" {
		return username
	}
	return "user"
}

// usernameSuffix derives a deterministic collision suffix from the provider's
// user ID, so retries for the same identity always produce the same username.
func usernameSuffix(providerUserID string) string {
	h := fnv.New32a()
	h.Write([]byte(providerUserID))
	return fmt.Sprintf("%08x", h.Sum32())
}

// CreateLocalAccount creates a password account, used for admin access via
// the API and CLI. Social accounts never have a password.
func (s *AccountService) CreateLocalAccount(ctx context.Context, username, displayName, password string, role entities.Role) (*entities.Account, error) {
	exists, err := s.accountRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check if account exists: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("account with username %s already exists", username)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	hash := string(passwordHash)
	now := time.Now()
	account := &entities.Account{
		Username:     username,
		DisplayName:  displayName,
		Role:         role,
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	metrics.AccountsCreated.WithLabelValues("local").Inc()

	auditLog := entities.NewAuditLog(nil, entities.ActionAccountCreated, entities.ResourceAccount).
		WithResourceID(account.ID).
		WithMetadata("username", username).
		WithMetadata("role", string(role)).
		WithMetadata("method", "local")
	s.auditLog(ctx, auditLog)

	// Clear password hash from returned account for security
	account.PasswordHash = nil
	return account, nil
}

// AuthenticatePassword authenticates a local account with a password. Every
// failure path reports the same generic error to the caller; the audit log
// keeps the real reason.
func (s *AccountService) AuthenticatePassword(ctx context.Context, username, password string, ipAddress, userAgent *string) (*entities.Account, error) {
	account, err := s.accountRepo.GetByUsername(ctx, username)
	if err != nil {
		auditLog := entities.NewAuditLog(nil, entities.ActionAdminAuthFailed, entities.ResourceAccount).
			WithMetadata("username", username).
			WithMetadata("reason", "account_not_found")
		if ipAddress != nil {
			auditLog = auditLog.WithIPAddress(*ipAddress)
		}
		if userAgent != nil {
			auditLog = auditLog.WithUserAgent(*userAgent)
		}
		s.auditLog(ctx, auditLog)

		return nil, fmt.Errorf("invalid credentials")
	}

	if account.Disabled {
		auditLog := entities.NewAuditLog(&account.ID, entities.ActionAdminAuthFailed, entities.ResourceAccount).
			WithResourceID(account.ID).
			WithMetadata("username", username).
			WithMetadata("reason", "account_disabled")
		if ipAddress != nil {
			auditLog = auditLog.WithIPAddress(*ipAddress)
		}
		if userAgent != nil {
			auditLog = auditLog.WithUserAgent(*userAgent)
		}
		s.auditLog(ctx, auditLog)

		return nil, fmt.Errorf("invalid credentials")
	}

	if !account.HasPassword() {
		auditLog := entities.NewAuditLog(&account.ID, entities.ActionAdminAuthFailed, entities.ResourceAccount).
			WithResourceID(account.ID).
			WithMetadata("username", username).
			WithMetadata("reason", "no_password_set")
		if ipAddress != nil {
			auditLog = auditLog.WithIPAddress(*ipAddress)
		}
		if userAgent != nil {
			auditLog = auditLog.WithUserAgent(*userAgent)
		}
		s.auditLog(ctx, auditLog)

		return nil, fmt.Errorf("invalid credentials")
	}

	if !account.VerifyPassword(password) {
		auditLog := entities.NewAuditLog(&account.ID, entities.ActionAdminAuthFailed, entities.ResourceAccount).
			WithResourceID(account.ID).
			WithMetadata("username", username).
			WithMetadata("reason", "invalid_password")
		if ipAddress != nil {
			auditLog = auditLog.WithIPAddress(*ipAddress)
		}
		if userAgent != nil {
			auditLog = auditLog.WithUserAgent(*userAgent)
		}
		s.auditLog(ctx, auditLog)

		return nil, fmt.Errorf("invalid credentials")
	}

	now := time.Now()
	if err := s.accountRepo.UpdateLastLogin(ctx, account.ID, now); err != nil {
		// Authentication already succeeded; a stale timestamp is tolerable.
	}
	account.LastLoginAt = &now

	// Clear password hash from returned account for security
	account.PasswordHash = nil
	return account, nil
}

// GetAccount retrieves an account by ID with its linked identities
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*entities.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	identities, err := s.identityRepo.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	account.Identities = identities

	account.PasswordHash = nil
	return account, nil
}

// ListAccounts lists accounts with filtering and pagination
func (s *AccountService) ListAccounts(ctx context.Context, opts repositories.ListAccountsOptions) ([]*entities.Account, int64, error) {
	accounts, total, err := s.accountRepo.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}

	// Clear password hashes for security
	for _, account := range accounts {
		account.PasswordHash = nil
	}

	return accounts, total, nil
}

// DisableAccount disables an account so it can no longer sign in. Existing
// sessions stop validating immediately; they are not deleted.
func (s *AccountService) DisableAccount(ctx context.Context, accountID, disabledBy string) error {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}

	if account.Disabled {
		return nil // Already disabled
	}

	account.Disabled = true
	account.UpdatedAt = time.Now()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to disable account: %w", err)
	}

	auditLog := entities.NewAuditLog(&disabledBy, entities.ActionAccountDisabled, entities.ResourceAccount).
		WithResourceID(account.ID).
		WithMetadata("disabled_by", disabledBy)
	s.auditLog(ctx, auditLog)

	return nil
}
