package config

import (
	"fmt"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Database    DatabaseConfig   `yaml:"database"`
	StateStore  StateStoreConfig `yaml:"state_store"`
	Session     SessionConfig    `yaml:"session"`
	Auth        AuthConfig       `yaml:"auth"`
	Login       LoginConfig      `yaml:"login"`
	Environment string           `yaml:"environment" default:"local"` // local, dev, prod
}

// Duration is a time.Duration that unmarshals from YAML strings like "10m"
// or "720h". Bare numbers are taken as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := unmarshal(&n); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}

	return fmt.Errorf("duration must be a string like \"10m\" or a number of seconds")
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host      string `yaml:"host" default:"localhost"`
	Port      int    `yaml:"port" default:"8080"`
	AdminPort int    `yaml:"admin_port" default:"6060"` // health + metrics listener
	PublicURL string `yaml:"public_url"`                // external base URL, used to build callback URLs
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	Database string `yaml:"database" default:"gatekeeper"`
	User     string `yaml:"user" default:"postgres"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode" default:"disable"` // disable, require, verify-ca, verify-full
}

// StateStoreConfig selects where login state tokens live. States are
// ephemeral, so memory is fine for a single instance; redis or postgres are
// required when more than one instance serves callbacks.
type StateStoreConfig struct {
	Backend string      `yaml:"backend" default:"memory"` // memory, redis, postgres
	TTL     Duration    `yaml:"ttl" default:"10m"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SessionConfig holds browser session configuration
type SessionConfig struct {
	TTL        Duration `yaml:"ttl" default:"720h"` // 30 days
	CookieName string   `yaml:"cookie_name" default:"gatekeeper_session"`
	Secret     string   `yaml:"secret"` // cookie signing secret; falls back to SESSION_SECRET env
	Secure     bool     `yaml:"secure"` // set the Secure cookie flag (behind TLS)
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWT       JWTConfig        `yaml:"jwt"`
	Providers []ProviderConfig `yaml:"providers"`
}

// JWTConfig holds JWT token configuration for the admin API
type JWTConfig struct {
	SigningKey string   `yaml:"signing_key"`            // Secret key for signing JWTs
	Lifetime   Duration `yaml:"lifetime" default:"24h"` // Admin API tokens are short-lived
}

// ProviderConfig holds OAuth provider configuration. Endpoints may be left
// empty for known kinds (github, twitter) and for OIDC providers, where they
// come from issuer discovery.
type ProviderConfig struct {
	Name         string   `yaml:"name"`                    // "github", "twitter", "google", ...
	Kind         string   `yaml:"kind"`                    // github, twitter, oidc
	ClientID     string   `yaml:"client_id"`               // OAuth client ID (required)
	ClientSecret string   `yaml:"client_secret,omitempty"` // OAuth client secret
	AuthURL      string   `yaml:"auth_url,omitempty"`      // authorize endpoint override
	TokenURL     string   `yaml:"token_url,omitempty"`     // token endpoint override
	ProfileURL   string   `yaml:"profile_url,omitempty"`   // profile endpoint override
	Issuer       string   `yaml:"issuer,omitempty"`        // OIDC issuer URL (for discovery)
	Scopes       []string `yaml:"scopes,omitempty"`        // OAuth scopes
}

// LoginConfig holds login flow configuration
type LoginConfig struct {
	Message         string   `yaml:"message"`                        // markdown notice shown on the login page
	SuccessRedirect string   `yaml:"success_redirect" default:"/"`   // where to land when no redirect target was given
	ExchangeTimeout Duration `yaml:"exchange_timeout" default:"10s"` // token endpoint call
	ProfileTimeout  Duration `yaml:"profile_timeout" default:"5s"`   // profile endpoint call
}

// ConnectionString returns the PostgreSQL connection string
func (p *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Provider returns the provider config with the given name, or nil.
func (a *AuthConfig) Provider(name string) *ProviderConfig {
	for i := range a.Providers {
		if a.Providers[i].Name == name {
			return &a.Providers[i]
		}
	}
	return nil
}
