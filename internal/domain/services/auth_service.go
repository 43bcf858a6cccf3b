package services

import (
	"context"
	"fmt"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/auth"
	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
)

// AuthService issues and validates JWT bearer tokens for the admin API.
// Browser logins never touch JWTs; those use opaque session cookies.
type AuthService struct {
	accounts  *AccountService
	auditRepo repositories.AuditRepository
	jwt       *auth.JWTManager
}

// NewAuthService creates a new auth service
func NewAuthService(accounts *AccountService, auditRepo repositories.AuditRepository, jwt *auth.JWTManager) *AuthService {
	return &AuthService{
		accounts:  accounts,
		auditRepo: auditRepo,
		jwt:       jwt,
	}
}

// auditLog is a helper method that logs audit events if auditRepo is available
func (s *AuthService) auditLog(ctx context.Context, auditLog *entities.AuditLog) error {
	if s.auditRepo == nil {
		return nil // Skip audit logging if not configured
	}
	return s.auditRepo.Create(ctx, auditLog)
}

// Login authenticates a local account with a password and issues a JWT
func (s *AuthService) Login(ctx context.Context, username, password string, ipAddress, userAgent *string) (string, time.Time, *entities.Account, error) {
	account, err := s.accounts.AuthenticatePassword(ctx, username, password, ipAddress, userAgent)
	if err != nil {
		// AuthenticatePassword already audited the failure with its reason.
		return "", time.Time{}, nil, err
	}

	tokenID, err := auth.GenerateTokenID()
	if err != nil {
		return "", time.Time{}, nil, fmt.Errorf("failed to generate token ID: %w", err)
	}

	tokenString, expiresAt, err := s.jwt.GenerateTokenWithClaims(
		account.ID, account.Username, account.DisplayName, string(account.Role), tokenID)
	if err != nil {
		return "", time.Time{}, nil, fmt.Errorf("failed to generate token: %w", err)
	}

	auditLog := entities.NewAuditLog(&account.ID, entities.ActionTokenIssued, entities.ResourceAccount).
		WithResourceID(account.ID).
		WithMetadata("username", account.Username).
		WithMetadata("expires_at", expiresAt.Format(time.RFC3339))
	if ipAddress != nil {
		auditLog = auditLog.WithIPAddress(*ipAddress)
	}
	if userAgent != nil {
		auditLog = auditLog.WithUserAgent(*userAgent)
	}
	s.auditLog(ctx, auditLog)

	return tokenString, expiresAt, account, nil
}

// Validate validates a JWT bearer token and returns its claims
func (s *AuthService) Validate(tokenString string) (*auth.Claims, error) {
	return s.jwt.ValidateToken(tokenString)
}
