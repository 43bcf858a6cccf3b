package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
// Uses Go's built-in os.ExpandEnv which is the idiomatic way to handle this
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/config.yaml",
	"./configs/config.yml",
	"./configs/development.yaml",
	"/etc/gatekeeper/config.yaml",
	"/etc/gatekeeper/config.yml",
}

// Load loads the configuration from the specified file or default locations
func Load(configPath string) (*Config, error) {
	// Set default values
	config := &Config{
		Server: ServerConfig{
			Host:      "localhost",
			Port:      8080,
			AdminPort: 6060,
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "gatekeeper",
				User:     "postgres",
				SSLMode:  "disable",
			},
		},
		StateStore: StateStoreConfig{
			Backend: "memory",
			TTL:     Duration(10 * time.Minute),
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Session: SessionConfig{
			TTL:        Duration(720 * time.Hour),
			CookieName: "gatekeeper_session",
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				Lifetime: Duration(24 * time.Hour),
			},
		},
		Login: LoginConfig{
			SuccessRedirect: "/",
			ExchangeTimeout: Duration(10 * time.Second),
			ProfileTimeout:  Duration(5 * time.Second),
		},
		Environment: "local",
	}

	// If no config path is provided, search in default locations
	if configPath == "" {
		configPath = findConfigFile()
	}

	// Load configuration from file if it exists
	if configPath != "" && fileExists(configPath) {
		fmt.Printf("[CONFIG] Loading config from: %s\n", configPath)
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the config
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		fmt.Printf("[CONFIG] No config file found, using defaults\n")
	}

	// Validate configuration
	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(filepath string) (*Config, error) {
	return Load(filepath)
}

// LoadFromDefaults loads configuration using only defaults and environment variables
func LoadFromDefaults() (*Config, error) {
	return Load("")
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}

// validate performs basic validation on the configuration
func validate(config *Config) error {
	// Validate PostgreSQL configuration
	if config.Database.Postgres.Host == "" {
		return fmt.Errorf("postgres host is required")
	}
	if config.Database.Postgres.Database == "" {
		return fmt.Errorf("postgres database name is required")
	}
	if config.Database.Postgres.User == "" {
		return fmt.Errorf("postgres user is required")
	}

	// Validate server ports are reasonable
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if config.Server.AdminPort < 1 || config.Server.AdminPort > 65535 {
		return fmt.Errorf("server.admin_port must be between 1 and 65535")
	}

	// Validate the state store backend
	switch config.StateStore.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("state_store.backend must be one of memory, redis, postgres (got %q)", config.StateStore.Backend)
	}
	if config.StateStore.Backend == "redis" && config.StateStore.Redis.Addr == "" {
		return fmt.Errorf("state_store.redis.addr is required for the redis backend")
	}
	if config.StateStore.TTL <= 0 {
		return fmt.Errorf("state_store.ttl must be positive")
	}

	// Validate providers
	seen := make(map[string]bool)
	for i, p := range config.Auth.Providers {
		if p.Name == "" {
			return fmt.Errorf("auth.providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("auth.providers: duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		if p.ClientID == "" {
			return fmt.Errorf("auth.providers[%d] (%s): client_id is required", i, p.Name)
		}
		switch p.Kind {
		case "github", "twitter":
		case "oidc":
			if p.Issuer == "" {
				return fmt.Errorf("auth.providers[%d] (%s): issuer is required for kind oidc", i, p.Name)
			}
		case "":
			return fmt.Errorf("auth.providers[%d] (%s): kind is required (github, twitter, oidc)", i, p.Name)
		default:
			return fmt.Errorf("auth.providers[%d] (%s): unknown kind %q", i, p.Name, p.Kind)
		}
	}

	return nil
}
