package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/gatekeeper/internal/config"
)

const (
	githubAuthURL    = "https://github.com/login/oauth/authorize"
	githubTokenURL   = "https://github.com/login/oauth/access_token"
	githubProfileURL = "https://api.github.com/user"
)

var githubDefaultScopes = []string{"read:user", "user:email"}

// GitHub authenticates users against a GitHub OAuth app
type GitHub struct {
	name       string
	oauth      *oauth2.Config
	profileURL string
	httpClient *http.Client
}

// NewGitHub creates a GitHub provider from configuration. Endpoint overrides
// are honored so tests can point at a local server.
func NewGitHub(publicURL string, cfg config.ProviderConfig) (*GitHub, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("client_id and client_secret are required")
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = githubAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = githubTokenURL
	}
	profileURL := cfg.ProfileURL
	if profileURL == "" {
		profileURL = githubProfileURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = githubDefaultScopes
	}

	return &GitHub{
		name: cfg.Name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  callbackURL(publicURL, cfg.Name),
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
			Scopes: scopes,
		},
		profileURL: profileURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Name returns the provider identifier used by the registry
func (p *GitHub) Name() string {
	return p.name
}

// AuthCodeURL builds the GitHub authorization URL with PKCE parameters
func (p *GitHub) AuthCodeURL(state, codeChallenge string) string {
	return p.oauth.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange trades the authorization code for an access token. GitHub returns
// form-encoded token responses by default; the oauth2 package handles both
// encodings.
func (p *GitHub) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	token, err := p.oauth.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("github token exchange failed: %w", err)
	}
	return token, nil
}

// FetchProfile retrieves the authenticated user from the GitHub API.
// The numeric id is the immutable identifier; login and name can be changed
// by the user at any time. Email is null for users who keep it private.
func (p *GitHub) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	body, err := fetchJSON(ctx, p.httpClient, p.profileURL, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("github profile fetch failed: %w", err)
	}

	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("github profile parse failed: %w", err)
	}
	if payload.ID == 0 {
		return nil, errors.New("github profile missing user id")
	}

	return &Profile{
		ID:          strconv.FormatInt(payload.ID, 10),
		Login:       payload.Login,
		DisplayName: payload.Name,
		Email:       payload.Email,
		AvatarURL:   payload.AvatarURL,
		Raw:         body,
	}, nil
}
