package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/gatekeeper/internal/config"
	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/services"
	"github.com/devilmonastery/gatekeeper/internal/infrastructure/database/postgres"
	"github.com/devilmonastery/gatekeeper/internal/pkg/idgen"
	"github.com/devilmonastery/gatekeeper/migrations"
)

func newAccountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account management commands",
		Long:  "Commands for managing accounts in the gatekeeper database",
	}

	cmd.AddCommand(newAccountCreateCommand())

	return cmd
}

func newAccountCreateCommand() *cobra.Command {
	var (
		username   string
		password   string
		name       string
		role       string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a local password account",
		Long:  "Create a local account with a password. Social accounts are created on first login; this exists to bootstrap admin access.",
		Example: `  # Create the first admin account
  server account create --username admin --password secret123 --role admin --name "Site Admin"

  # Create a regular local account
  server account create --username backup --password pass123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createAccount(configPath, username, password, name, role)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account username (required)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the username)")
	cmd.Flags().StringVar(&role, "role", "user", "Account role (user, admin)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (optional)")

	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")

	return cmd
}

func createAccount(configPath, username, password, name, role string) error {
	// Initialize ID generator
	if err := idgen.Initialize(1); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate role before touching the database
	accountRole := entities.Role(role)
	if accountRole != entities.RoleUser && accountRole != entities.RoleAdmin {
		return fmt.Errorf("invalid role: %s (must be 'user' or 'admin')", role)
	}

	if name == "" {
		name = username
	}

	// Initialize database
	pgConn, err := postgres.NewConnection(cfg.Database.Postgres.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}
	defer pgConn.Close()

	// Run migrations to ensure database is up to date
	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	accountRepo := postgres.NewAccountRepository(pgConn.DB)
	identityRepo := postgres.NewIdentityRepository(pgConn.DB)
	auditRepo := postgres.NewAuditRepository(pgConn.DB)
	accountService := services.NewAccountService(accountRepo, identityRepo, auditRepo)

	account, err := accountService.CreateLocalAccount(context.Background(), username, name, password, accountRole)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("Account created successfully",
		"account_id", account.ID,
		"username", account.Username,
		"display_name", account.DisplayName,
		"role", account.Role,
	)

	return nil
}
