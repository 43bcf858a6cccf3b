package services

import (
	"context"
	"fmt"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
	"github.com/devilmonastery/gatekeeper/internal/pkg/metrics"
	"github.com/devilmonastery/gatekeeper/internal/providers"
)

// LoginService orchestrates the social login flow: issuing state for the
// redirect to the provider, and completing the callback into a local account
// with an open session.
type LoginService struct {
	registry  *providers.Registry
	stateRepo repositories.StateRepository
	accounts  *AccountService
	sessions  *SessionService
	auditRepo repositories.AuditRepository

	stateTTL        time.Duration
	exchangeTimeout time.Duration
	profileTimeout  time.Duration
}

// LoginResult is the outcome of a completed login
type LoginResult struct {
	Account        *entities.Account
	Session        *entities.Session
	RedirectTarget string // where the browser should land, may be empty
	Created        bool   // true when this login created the account
}

// NewLoginService creates a new login service
func NewLoginService(
	registry *providers.Registry,
	stateRepo repositories.StateRepository,
	accounts *AccountService,
	sessions *SessionService,
	auditRepo repositories.AuditRepository,
	stateTTL, exchangeTimeout, profileTimeout time.Duration,
) *LoginService {
	return &LoginService{
		registry:        registry,
		stateRepo:       stateRepo,
		accounts:        accounts,
		sessions:        sessions,
		auditRepo:       auditRepo,
		stateTTL:        stateTTL,
		exchangeTimeout: exchangeTimeout,
		profileTimeout:  profileTimeout,
	}
}

// auditLog is a helper method that logs audit events if auditRepo is available
func (s *LoginService) auditLog(ctx context.Context, auditLog *entities.AuditLog) error {
	if s.auditRepo == nil {
		return nil // Skip audit logging if not configured
	}
	return s.auditRepo.Create(ctx, auditLog)
}

// Providers returns the registered provider names in registration order,
// for the login page and the admin API.
func (s *LoginService) Providers() []string {
	return s.registry.List()
}

// Begin starts a login flow: issues a single-use state record with a fresh
// PKCE verifier and returns the provider authorize URL to redirect to. No
// network call is made.
func (s *LoginService) Begin(ctx context.Context, providerName, redirectTarget string) (string, error) {
	provider, err := s.registry.Get(providerName)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	stateToken, err := generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}

	codeVerifier, err := providers.GenerateCodeVerifier()
	if err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}

	now := time.Now()
	state := &entities.LoginState{
		Token:          stateToken,
		Provider:       providerName,
		RedirectTarget: redirectTarget,
		CodeVerifier:   codeVerifier,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.stateTTL),
	}

	if err := s.stateRepo.Issue(ctx, state); err != nil {
		return "", fmt.Errorf("failed to issue login state: %w", err)
	}
	metrics.StateTokensIssued.WithLabelValues(providerName).Inc()

	auditLog := entities.NewAuditLog(nil, entities.ActionLoginStarted, entities.ResourceLoginState).
		WithMetadata("provider", providerName)
	if redirectTarget != "" {
		auditLog = auditLog.WithMetadata("redirect_target", redirectTarget)
	}
	s.auditLog(ctx, auditLog)

	return provider.AuthCodeURL(stateToken, providers.ComputeS256Challenge(codeVerifier)), nil
}

// Complete finishes a login flow from a provider callback. Every step is
// terminal on failure: the state is already consumed, authorization codes
// are single-use, and the browser ends up back on the login page either way.
func (s *LoginService) Complete(ctx context.Context, providerName, code, stateToken string, ipAddress, userAgent *string) (*LoginResult, error) {
	start := time.Now()

	provider, err := s.registry.Get(providerName)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
		s.recordFailure(ctx, providerName, err, ipAddress, userAgent, start)
		return nil, err
	}

	// Step 1: consume the state. Atomic in every backend, so a replayed
	// callback loses here.
	state, err := s.stateRepo.Consume(ctx, stateToken)
	if err != nil {
		metrics.StateConsumeFailures.WithLabelValues("not_found").Inc()
		err = fmt.Errorf("%w: %v", ErrInvalidState, err)
		s.recordFailure(ctx, providerName, err, ipAddress, userAgent, start)
		return nil, err
	}
	if state.Provider != providerName {
		metrics.StateConsumeFailures.WithLabelValues("provider_mismatch").Inc()
		err = fmt.Errorf("%w: state was issued for provider %s", ErrInvalidState, state.Provider)
		s.recordFailure(ctx, providerName, err, ipAddress, userAgent, start)
		return nil, err
	}

	// Step 2: exchange the authorization code. Codes are single-use, so
	// this is never retried.
	exchangeCtx, cancelExchange := context.WithTimeout(ctx, s.exchangeTimeout)
	defer cancelExchange()

	exchangeStart := time.Now()
	token, err := provider.Exchange(exchangeCtx, code, state.CodeVerifier)
	metrics.RecordProviderRequest(providerName, "token", time.Since(exchangeStart), err)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrProviderExchange, err)
		s.recordFailure(ctx, providerName, err, ipAddress, userAgent, start)
		return nil, err
	}

	// Step 3: fetch the profile with the access token.
	profileCtx, cancelProfile := context.WithTimeout(ctx, s.profileTimeout)
	defer cancelProfile()

	profileStart := time.Now()
	profile, err := provider.FetchProfile(profileCtx, token)
	metrics.RecordProviderRequest(providerName, "profile", time.Since(profileStart), err)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrProfileFetch, err)
		s.recordFailure(ctx, providerName, err, ipAddress, userAgent, start)
		return nil, err
	}

	// Step 4: map the identity to a local account, creating it on first
	// login.
	account, created, err := s.accounts.Resolve(ctx, providerName, profile)
	if err != nil {
		if !IsAccountDisabled(err) {
			err = fmt.Errorf("%w: %v", ErrAccountCreation, err)
		}
		s.recordFailure(ctx, providerName, err, ipAddress, userAgent, start)
		return nil, err
	}

	// Step 5: open the browser session.
	session, err := s.sessions.Open(ctx, account, ipAddress, userAgent)
	if err != nil {
		err = fmt.Errorf("failed to open session: %w", err)
		s.recordFailure(ctx, providerName, err, ipAddress, userAgent, start)
		return nil, err
	}

	auditLog := entities.NewAuditLog(&account.ID, entities.ActionLoginCompleted, entities.ResourceAccount).
		WithResourceID(account.ID).
		WithMetadata("provider", providerName).
		WithMetadata("identity", providerName+":"+profile.ID).
		WithMetadata("account_created", created)
	if ipAddress != nil {
		auditLog = auditLog.WithIPAddress(*ipAddress)
	}
	if userAgent != nil {
		auditLog = auditLog.WithUserAgent(*userAgent)
	}
	s.auditLog(ctx, auditLog)

	metrics.RecordLogin(providerName, "success", time.Since(start))

	return &LoginResult{
		Account:        account,
		Session:        session,
		RedirectTarget: state.RedirectTarget,
		Created:        created,
	}, nil
}

// recordFailure audits a failed login attempt and records its metrics. The
// reason string stays in the audit trail; callers show the user nothing more
// than a generic failure.
func (s *LoginService) recordFailure(ctx context.Context, providerName string, err error, ipAddress, userAgent *string, start time.Time) {
	reason := LoginFailureReason(err)

	auditLog := entities.NewAuditLog(nil, entities.ActionLoginFailed, entities.ResourceLoginState).
		WithMetadata("provider", providerName).
		WithMetadata("reason", reason).
		WithError(err)
	if ipAddress != nil {
		auditLog = auditLog.WithIPAddress(*ipAddress)
	}
	if userAgent != nil {
		auditLog = auditLog.WithUserAgent(*userAgent)
	}
	s.auditLog(ctx, auditLog)

	metrics.RecordLogin(providerName, reason, time.Since(start))
}
