package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/gatekeeper/internal/auth"
	"github.com/devilmonastery/gatekeeper/internal/config"
	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/infrastructure/database/postgres"
	"github.com/devilmonastery/gatekeeper/internal/pkg/idgen"
	"github.com/devilmonastery/gatekeeper/migrations"
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Admin API token commands",
		Long:  "Commands for minting admin API tokens without going through the login endpoint",
	}

	cmd.AddCommand(newTokenCreateCommand())

	return cmd
}

func newTokenCreateCommand() *cobra.Command {
	var (
		username   string
		lifetime   time.Duration
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint an API token for an existing account",
		Long: `Mint a signed API token for an existing account, without a password.

This exists for automation (cron jobs, CI) that needs API access but should
not hold a password. Tokens are stateless: they cannot be revoked before
they expire, so keep lifetimes short.

Examples:
  # One day token for the admin account
  server token create --username admin

  # Short-lived token for a migration script
  server token create --username admin --lifetime 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createToken(configPath, username, lifetime)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account username (required)")
	cmd.Flags().DurationVar(&lifetime, "lifetime", 24*time.Hour, "How long the token stays valid")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file")

	cmd.MarkFlagRequired("username")

	return cmd
}

func createToken(configPath, username string, lifetime time.Duration) error {
	// Initialize ID generator
	if err := idgen.Initialize(1); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Auth.JWT.SigningKey == "" {
		return fmt.Errorf("auth.jwt.signing_key is not configured")
	}
	if lifetime <= 0 {
		return fmt.Errorf("lifetime must be positive")
	}

	// Initialize database
	pgConn, err := postgres.NewConnection(cfg.Database.Postgres.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pgConn.Close()

	// Run migrations
	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	accountRepo := postgres.NewAccountRepository(pgConn.DB)
	auditRepo := postgres.NewAuditRepository(pgConn.DB)

	ctx := context.Background()

	account, err := accountRepo.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to look up account %q: %w", username, err)
	}
	if account.Disabled {
		return fmt.Errorf("account %q is disabled", username)
	}

	tokenID, err := auth.GenerateTokenID()
	if err != nil {
		return fmt.Errorf("failed to generate token ID: %w", err)
	}

	// The token carries the account's actual role; admin-only routes
	// still reject user tokens
	jwtManager := auth.NewJWTManager(cfg.Auth.JWT.SigningKey, lifetime)
	token, expiresAt, err := jwtManager.GenerateTokenWithClaims(
		account.ID,
		account.Username,
		account.DisplayName,
		string(account.Role),
		tokenID,
	)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	auditLog := entities.NewAuditLog(&account.ID, entities.ActionTokenIssued, entities.ResourceAccount).
		WithResourceID(account.ID).
		WithMetadata("token_id", tokenID).
		WithMetadata("source", "cli")
	if err := auditRepo.Create(ctx, auditLog); err != nil {
		slog.Warn("failed to write audit entry", "error", err)
	}

	fmt.Println("\n✓ Token minted. Save it now; it will not be shown again.")
	fmt.Println()
	fmt.Printf("Username:   %s\n", account.Username)
	fmt.Printf("Role:       %s\n", account.Role)
	fmt.Printf("Token ID:   %s\n", tokenID)
	fmt.Printf("Expires At: %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println(token)

	slog.Info("API token minted",
		"username", account.Username,
		"token_id", tokenID,
		"expires_at", expiresAt.Format(time.RFC3339))

	return nil
}
