package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Profile is the normalized identity a provider returns after a successful
// login. ID is the provider's immutable user identifier and is the only field
// used for account matching; everything else is display data that may change
// between logins.
type Profile struct {
	// ID is the provider-assigned user identifier as a raw string
	// (GitHub's numeric id, Twitter's data.id, an OIDC sub claim)
	ID string

	// Login is the provider-side handle (GitHub login, Twitter username)
	Login string

	// DisplayName is the human-readable name, may be empty
	DisplayName string

	// Email as reported by the provider, may be empty or unverified
	Email string

	// AvatarURL is the profile picture URL, may be empty
	AvatarURL string

	// Raw is the unparsed profile document, stored alongside the identity
	Raw json.RawMessage
}

// Provider defines the interface for external login providers.
// Each provider (GitHub, Twitter, generic OIDC) implements this interface.
// Implementations return identity facts only; account lookup, linking and
// session management belong to the service layer.
type Provider interface {
	// Name returns the provider identifier (e.g., "github", "twitter")
	Name() string

	// AuthCodeURL builds the authorization URL the user is redirected to.
	// state is the single-use CSRF token and codeChallenge the PKCE S256
	// challenge derived from the stored verifier.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange trades an authorization code for provider credentials.
	// codeVerifier is the PKCE verifier issued alongside the challenge.
	Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)

	// FetchProfile retrieves the normalized user profile for the credentials
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// callbackURL derives the provider's redirect URL from the externally
// visible base URL.
func callbackURL(publicURL, name string) string {
	return strings.TrimRight(publicURL, "/") + "/login/" + name + "/callback"
}

// fetchJSON performs an authenticated GET against a provider profile
// endpoint and returns the raw response body.
func fetchJSON(ctx context.Context, client *http.Client, url, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read profile response: %w", err)
	}
	return body, nil
}
