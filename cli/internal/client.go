package cli

import (
	"fmt"

	"github.com/devilmonastery/gatekeeper/internal/client"
)

// NewAPIClient creates a shared admin API client that authenticates
// requests with the stored credentials for the current context
func NewAPIClient() (*client.Client, error) {
	// Load config for server address
	config, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Get server address from current context
	serverAddress, err := config.ServerAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to get server address: %w", err)
	}

	// Create file-based token manager
	tokenManager := NewFileCredentials()

	apiClient, err := client.NewClient(serverAddress, tokenManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return apiClient, nil
}

// NewUnauthenticatedClient creates a client without authentication (for login)
func NewUnauthenticatedClient() (*client.Client, error) {
	// Load config for server address
	config, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Get server address from current context
	serverAddress, err := config.ServerAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to get server address: %w", err)
	}

	// Create client without token manager (nil = no auth)
	apiClient, err := client.NewClient(serverAddress, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return apiClient, nil
}
