package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/devilmonastery/gatekeeper/internal/auth"
	"github.com/devilmonastery/gatekeeper/internal/config"
	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
	"github.com/devilmonastery/gatekeeper/internal/domain/services"
	"github.com/devilmonastery/gatekeeper/internal/infrastructure/database/postgres"
	"github.com/devilmonastery/gatekeeper/internal/infrastructure/statestore"
	"github.com/devilmonastery/gatekeeper/internal/pkg/idgen"
	"github.com/devilmonastery/gatekeeper/internal/pkg/logger"
	"github.com/devilmonastery/gatekeeper/internal/providers"
	"github.com/devilmonastery/gatekeeper/migrations"
	"github.com/devilmonastery/gatekeeper/server/internal/handlers"
	"github.com/devilmonastery/gatekeeper/server/internal/render"
	"github.com/devilmonastery/gatekeeper/server/internal/session"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		forceVersion  int
		configPath    string
		logLevel      string
		logFile       string
		logToStderr   bool
		alsoLogStderr bool
		logFormat     string
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Gatekeeper login server",
		Long:  "The HTTP server for the gatekeeper social login service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return setupServerLogging(logLevel, logFile, logToStderr, alsoLogStderr, logFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configPath, forceVersion)
		},
	}

	cmd.Flags().IntVar(&forceVersion, "force-migration", -1, "Force migration version (use to fix dirty migration state)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (optional)")

	// Add logging flags
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	cmd.Flags().BoolVar(&logToStderr, "logtostderr", false, "Log to stderr (default behavior unless --log-file specified)")
	cmd.Flags().BoolVar(&alsoLogStderr, "alsologtostderr", false, "Log to both file and stderr")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "Log format (text, json)")

	// Add subcommands
	cmd.AddCommand(newAccountCommand())
	cmd.AddCommand(newTokenCommand())

	return cmd
}

// setupServerLogging configures the global logger for the server
func setupServerLogging(logLevel, logFile string, logToStderr, alsoLogStderr bool, logFormat string) error {
	// Default to stderr logging unless file is specified
	if logFile == "" {
		logToStderr = true
	}

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       logFile,
		LogToStderr:   logToStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	// Set as default logger
	slog.SetDefault(globalLogger)

	return nil
}

func runServer(configPath string, forceVersion int) error {
	log := slog.Default().With("component", "server")
	log.Info("starting gatekeeper server", "version", render.Version)

	// Initialize Snowflake ID generator
	if err := idgen.Initialize(1); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Callback URLs are built from the public URL, so it has to exist even
	// when the operator didn't set one
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Warn("server.public_url not set, deriving from listen address",
			"public_url", cfg.Server.PublicURL)
	}

	log.Info("configured OAuth providers", "count", len(cfg.Auth.Providers))
	for _, p := range cfg.Auth.Providers {
		log.Info("OAuth provider configured",
			"name", p.Name,
			"kind", p.Kind,
			"client_id", p.ClientID)
	}

	// Connect to PostgreSQL with retries (for Kubernetes startup)
	connString := cfg.Database.Postgres.ConnectionString()

	var pgConn *postgres.Connection
	maxRetries := 10
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		var err error
		pgConn, err = postgres.NewConnection(connString)
		if err == nil {
			log.Info("connected to PostgreSQL",
				"host", cfg.Database.Postgres.Host,
				"database", cfg.Database.Postgres.Database,
				"user", cfg.Database.Postgres.User)
			break
		}

		if i < maxRetries-1 {
			log.Warn("failed to connect to PostgreSQL",
				"attempt", i+1,
				"max_retries", maxRetries,
				"error", err,
				"retry_delay", retryDelay)
			time.Sleep(retryDelay)
			retryDelay *= 2 // Exponential backoff
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}
		} else {
			return fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", maxRetries, err)
		}
	}
	defer pgConn.Close()

	// Handle force migration if requested
	if forceVersion >= 0 {
		log.Info("force setting migration version", "version", forceVersion)
		if err := pgConn.ForceMigrationVersion(migrations.FS, forceVersion); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
		log.Info("migration version forced, exiting", "version", forceVersion)
		return nil
	}

	// Run migrations
	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize PostgreSQL repositories
	accountRepo := postgres.NewAccountRepository(pgConn.DB)
	identityRepo := postgres.NewIdentityRepository(pgConn.DB)
	sessionRepo := postgres.NewSessionRepository(pgConn.DB)
	auditRepo := postgres.NewAuditRepository(pgConn.DB)

	// Pick the login state backend. Memory only works for one instance;
	// redis and postgres let any instance answer a callback.
	var stateRepo repositories.StateRepository
	var redisStore *statestore.Redis
	switch cfg.StateStore.Backend {
	case "redis":
		redisStore, err = statestore.NewRedis(cfg.StateStore.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisStore.Close()
		stateRepo = redisStore
	case "postgres":
		stateRepo = postgres.NewStateRepository(pgConn.DB)
	default:
		stateRepo = statestore.NewMemory()
	}
	log.Info("state store ready", "backend", cfg.StateStore.Backend, "ttl", cfg.StateStore.TTL.String())

	// Build the provider registry. OIDC providers run issuer discovery here,
	// so a bad issuer URL fails the whole startup.
	registry, err := providers.NewRegistryFromConfig(context.Background(), cfg.Server.PublicURL, cfg.Auth.Providers)
	if err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}

	// Initialize JWT manager from config
	if cfg.Auth.JWT.SigningKey == "" {
		return fmt.Errorf("auth.jwt.signing_key is required")
	}
	if cfg.Auth.JWT.Lifetime <= 0 {
		return fmt.Errorf("auth.jwt.lifetime must be positive")
	}
	jwtManager := auth.NewJWTManager(cfg.Auth.JWT.SigningKey, time.Duration(cfg.Auth.JWT.Lifetime))

	// Initialize services
	accountService := services.NewAccountService(accountRepo, identityRepo, auditRepo)
	sessionService := services.NewSessionService(sessionRepo, accountRepo, auditRepo, time.Duration(cfg.Session.TTL))
	loginService := services.NewLoginService(registry, stateRepo, accountService, sessionService, auditRepo,
		time.Duration(cfg.StateStore.TTL), time.Duration(cfg.Login.ExchangeTimeout), time.Duration(cfg.Login.ProfileTimeout))
	authService := services.NewAuthService(accountService, auditRepo, jwtManager)

	// Load embedded templates
	templates, err := render.LoadTemplates()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	log.Info("templates loaded", "pages", templates.Names())

	// Initialize session manager
	secret, err := sessionSecret(cfg, log)
	if err != nil {
		return err
	}
	sessionManager := session.NewManager(secret, cfg.Session.CookieName, time.Duration(cfg.Session.TTL), cfg.Session.Secure)

	providerInfos := make([]handlers.ProviderInfo, 0, len(cfg.Auth.Providers))
	for _, p := range cfg.Auth.Providers {
		providerInfos = append(providerInfos, handlers.ProviderInfo{Name: p.Name, Kind: p.Kind})
	}

	h := handlers.New(loginService, accountService, sessionService, authService,
		sessionManager, templates, cfg.Login, providerInfos, slog.Default())

	startupEntry := entities.NewAuditLog(nil, entities.ActionSystemStartup, entities.ResourceSystem).
		WithMetadata("version", render.Version).
		WithMetadata("providers", strings.Join(registry.List(), ","))
	if err := auditRepo.Create(context.Background(), startupEntry); err != nil {
		log.Warn("failed to write startup audit entry", "error", err)
	}

	// Janitors for expired login states and sessions
	done := make(chan struct{})
	var janitors sync.WaitGroup
	janitors.Add(2)
	go func() {
		defer janitors.Done()
		runStateJanitor(done, stateRepo, log)
	}()
	go func() {
		defer janitors.Done()
		runSessionJanitor(done, sessionService, log)
	}()

	// Admin listener for health probes and Prometheus scrapes
	adminAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.AdminPort)
	adminSrv := &http.Server{
		Addr:              adminAddr,
		Handler:           newAdminMux(pgConn, redisStore),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("starting admin listener", "address", adminAddr)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin listener failed", "error", err)
		}
	}()

	// Main web server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting web server", "address", addr, "public_url", cfg.Server.PublicURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("web server failed: %w", err)
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
	}

	close(done)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown failed", "error", err)
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("admin listener shutdown failed", "error", err)
	}
	janitors.Wait()

	shutdownEntry := entities.NewAuditLog(nil, entities.ActionSystemShutdown, entities.ResourceSystem)
	if err := auditRepo.Create(context.Background(), shutdownEntry); err != nil {
		log.Warn("failed to write shutdown audit entry", "error", err)
	}

	log.Info("server stopped")
	return nil
}

// sessionSecret resolves the cookie signing secret.
// Priority: env var > config file > random (dev only).
func sessionSecret(cfg *config.Config, log *slog.Logger) ([]byte, error) {
	if envSecret := os.Getenv("SESSION_SECRET"); envSecret != "" {
		secret, err := base64.StdEncoding.DecodeString(envSecret)
		if err == nil {
			log.Info("using session secret from environment (sessions persist across restarts)")
			return secret, nil
		}
		log.Warn("failed to decode SESSION_SECRET env var, trying config", "error", err)
	}

	if cfg.Session.Secret != "" {
		secret, err := base64.StdEncoding.DecodeString(cfg.Session.Secret)
		if err == nil {
			log.Info("using session secret from config (sessions persist across restarts)")
			return secret, nil
		}
		log.Warn("failed to decode session secret from config", "error", err)
	}

	log.Warn("no session secret configured, generating a random one (sessions won't survive a restart)")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	return secret, nil
}

// newAdminMux serves health and metrics on the admin port. The health check
// is deep: it pings every backend the instance depends on.
func newAdminMux(pgConn *postgres.Connection, redisStore *statestore.Redis) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := pgConn.HealthCheck(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if redisStore != nil {
			if err := redisStore.HealthCheck(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// runStateJanitor periodically purges expired login states. Mostly matters
// for the memory and postgres backends; redis expires keys on its own.
func runStateJanitor(done <-chan struct{}, states repositories.StateRepository, log *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			purged, err := states.PurgeExpired(ctx, time.Now())
			cancel()
			if err != nil {
				log.Error("state purge failed", "error", err)
				continue
			}
			if purged > 0 {
				log.Info("purged expired login states", "count", purged)
			}
		}
	}
}

// runSessionJanitor periodically deletes long-expired sessions
func runSessionJanitor(done <-chan struct{}, sessions *services.SessionService, log *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			deleted, err := sessions.DeleteExpired(ctx)
			cancel()
			if err != nil {
				log.Error("session cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				log.Info("deleted expired sessions", "count", deleted)
			}
		}
	}
}
