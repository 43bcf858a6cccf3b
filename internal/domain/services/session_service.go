package services

import (
	"context"
	"fmt"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
	"github.com/devilmonastery/gatekeeper/internal/pkg/metrics"
)

// SessionService provides business logic for browser sessions. Session
// tokens are opaque random values; the cookie layer stores the token and
// nothing else.
type SessionService struct {
	sessionRepo repositories.SessionRepository
	accountRepo repositories.AccountRepository
	auditRepo   repositories.AuditRepository
	ttl         time.Duration
}

// NewSessionService creates a new session service
func NewSessionService(
	sessionRepo repositories.SessionRepository,
	accountRepo repositories.AccountRepository,
	auditRepo repositories.AuditRepository,
	ttl time.Duration,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		accountRepo: accountRepo,
		auditRepo:   auditRepo,
		ttl:         ttl,
	}
}

// auditLog is a helper method that logs audit events if auditRepo is available
func (s *SessionService) auditLog(ctx context.Context, auditLog *entities.AuditLog) error {
	if s.auditRepo == nil {
		return nil // Skip audit logging if not configured
	}
	return s.auditRepo.Create(ctx, auditLog)
}

// Open creates a new session for an account and returns it with its token
func (s *SessionService) Open(ctx context.Context, account *entities.Account, ipAddress, userAgent *string) (*entities.Session, error) {
	token, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	session := &entities.Session{
		Token:     token,
		AccountID: account.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	auditLog := entities.NewAuditLog(&account.ID, entities.ActionSessionCreated, entities.ResourceSession).
		WithResourceID(session.ID).
		WithMetadata("expires_at", session.ExpiresAt.Format(time.RFC3339))
	if ipAddress != nil {
		auditLog = auditLog.WithIPAddress(*ipAddress)
	}
	if userAgent != nil {
		auditLog = auditLog.WithUserAgent(*userAgent)
	}
	s.auditLog(ctx, auditLog)

	return session, nil
}

// Get validates a session token and returns the session and its account.
// Expired or revoked sessions and disabled accounts all fail validation;
// callers treat any error as "not signed in".
func (s *SessionService) Get(ctx context.Context, token string) (*entities.Session, *entities.Account, error) {
	if token == "" {
		return nil, nil, repositories.ErrSessionNotFound
	}

	session, err := s.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	if !session.Valid() {
		return nil, nil, repositories.ErrSessionNotFound
	}

	account, err := s.accountRepo.GetByID(ctx, session.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get session account: %w", err)
	}

	if account.Disabled {
		return nil, nil, repositories.ErrAccountDisabled
	}

	account.PasswordHash = nil
	return session, account, nil
}

// Revoke revokes a session by ID. Safe to call on an already-revoked session.
func (s *SessionService) Revoke(ctx context.Context, sessionID string, revokedBy *string) error {
	if err := s.sessionRepo.Revoke(ctx, sessionID, time.Now()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	metrics.SessionsRevoked.WithLabelValues("admin").Inc()

	auditLog := entities.NewAuditLog(revokedBy, entities.ActionSessionRevoked, entities.ResourceSession).
		WithResourceID(sessionID)
	s.auditLog(ctx, auditLog)

	return nil
}

// RevokeByToken revokes the session carrying the given token (logout)
func (s *SessionService) RevokeByToken(ctx context.Context, token string) error {
	session, err := s.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		return err
	}

	if err := s.sessionRepo.Revoke(ctx, session.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	metrics.SessionsRevoked.WithLabelValues("logout").Inc()

	auditLog := entities.NewAuditLog(&session.AccountID, entities.ActionLogout, entities.ResourceSession).
		WithResourceID(session.ID)
	s.auditLog(ctx, auditLog)

	return nil
}

// RevokeAllForAccount revokes every active session for an account and
// returns how many were revoked
func (s *SessionService) RevokeAllForAccount(ctx context.Context, accountID string, revokedBy *string) (int64, error) {
	revoked, err := s.sessionRepo.RevokeAllForAccount(ctx, accountID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	metrics.SessionsRevoked.WithLabelValues("admin").Add(float64(revoked))

	if revoked > 0 {
		auditLog := entities.NewAuditLog(revokedBy, entities.ActionSessionRevoked, entities.ResourceSession).
			WithMetadata("account_id", accountID).
			WithMetadata("revoked", revoked)
		s.auditLog(ctx, auditLog)
	}

	return revoked, nil
}

// ListSessions lists sessions for the admin API
func (s *SessionService) ListSessions(ctx context.Context, opts repositories.ListSessionsOptions) ([]*entities.Session, error) {
	sessions, err := s.sessionRepo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteExpired removes sessions that expired before now. Called by the
// cleanup janitor.
func (s *SessionService) DeleteExpired(ctx context.Context) (int64, error) {
	deleted, err := s.sessionRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return deleted, nil
}
