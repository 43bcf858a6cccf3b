package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/client"
)

// Credentials stores the authentication credentials
type Credentials struct {
	AccessToken string    `json:"access_token"`
	AccountID   string    `json:"account_id"`
	Username    string    `json:"username"`
	Role        string    `json:"role,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsExpired checks if the token is expired
func (c *Credentials) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// NewFileCredentials creates a new file-based credential manager that implements TokenManager
func NewFileCredentials() client.TokenManager {
	return &FileCredentials{}
}

// FileCredentials implements TokenManager using file-based credential storage
type FileCredentials struct{}

// GetToken returns the current access token from file.
// Tokens are not refreshable, so an expired one is reported right away
// instead of being sent to the server.
func (f *FileCredentials) GetToken() (string, error) {
	creds, err := LoadCredentials()
	if err != nil {
		slog.Debug("failed to load credentials",
			slog.String("component", "cli-token"),
			slog.String("error", err.Error()))
		return "", err
	}
	if creds.IsExpired() {
		return "", fmt.Errorf("token expired, please run 'gatekeeper auth login'")
	}
	preview := creds.AccessToken
	if len(preview) > 30 {
		preview = preview[:30] + "..."
	}
	slog.Debug("GetToken returning",
		slog.String("component", "cli-token"),
		slog.String("preview", preview))
	return creds.AccessToken, nil
}

// ClearToken removes the credentials file
func (f *FileCredentials) ClearToken() error {
	return RemoveCredentials()
}

// extractJWTExpiry decodes a JWT and extracts the expiration time
func extractJWTExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid JWT format")
	}

	// Decode the payload (second part)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, err
	}

	// Parse the JSON payload
	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, err
	}

	// Extract exp claim
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, fmt.Errorf("exp claim not found or invalid")
	}

	return time.Unix(int64(exp), 0), nil
}

// credentialsPath returns the path to the credentials file for the current context
func credentialsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// Load config to get current context
	config, err := LoadConfig()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	// Use context-specific credentials file
	configDir := filepath.Join(homeDir, ".config", "gatekeeper")
	filename := fmt.Sprintf("credentials-%s.json", config.CurrentContext)
	return filepath.Join(configDir, filename), nil
}

// SaveCredentials saves credentials to disk
func SaveCredentials(creds *Credentials) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}

	// The server reports expiry alongside the token, but derive it from
	// the JWT when a caller didn't fill it in
	if creds.ExpiresAt.IsZero() {
		if expiresAt, err := extractJWTExpiry(creds.AccessToken); err == nil {
			creds.ExpiresAt = expiresAt
		}
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal credentials
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// Write with restricted permissions (read/write for owner only)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	return nil
}

// LoadCredentials loads credentials from disk
func LoadCredentials() (*Credentials, error) {
	path, err := credentialsPath()
	if err != nil {
		return nil, err
	}
	slog.Debug("loading credentials from file",
		slog.String("component", "cli-creds"),
		slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("not logged in")
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	return &creds, nil
}

// RemoveCredentials removes the credentials file
func RemoveCredentials() error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	return nil
}
