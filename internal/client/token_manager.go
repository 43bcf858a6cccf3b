package client

// TokenManager is an interface for managing stored API tokens.
// Different implementations can keep tokens in files, keyrings, env vars, etc.
type TokenManager interface {
	// GetToken returns the current access token
	GetToken() (token string, err error)

	// ClearToken removes stored credentials
	ClearToken() error
}
