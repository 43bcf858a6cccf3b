package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/gatekeeper/internal/config"
)

const (
	twitterAuthURL    = "https://twitter.com/i/oauth2/authorize"
	twitterTokenURL   = "https://api.twitter.com/2/oauth2/token"
	twitterProfileURL = "https://api.twitter.com/2/users/me"
)

var twitterDefaultScopes = []string{"users.read", "tweet.read"}

// Twitter authenticates users against the Twitter v2 OAuth API.
// Twitter requires PKCE on every authorization request.
type Twitter struct {
	name       string
	oauth      *oauth2.Config
	profileURL string
	httpClient *http.Client
}

// NewTwitter creates a Twitter provider from configuration
func NewTwitter(publicURL string, cfg config.ProviderConfig) (*Twitter, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("client_id and client_secret are required")
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = twitterAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = twitterTokenURL
	}
	profileURL := cfg.ProfileURL
	if profileURL == "" {
		profileURL = twitterProfileURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = twitterDefaultScopes
	}

	return &Twitter{
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
func (p *Twitter) Name() string {
	return p.name
}

// AuthCodeURL builds the Twitter authorization URL with PKCE parameters
func (p *Twitter) AuthCodeURL(state, codeChallenge string) string {
	return p.oauth.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange trades the authorization code for an access token
func (p *Twitter) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	token, err := p.oauth.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("twitter token exchange failed: %w", err)
	}
	return token, nil
}

// FetchProfile retrieves the authenticated user from the Twitter v2 API.
// The response wraps the user object in a data envelope; data.id is the
// immutable identifier and data.username the changeable handle.
func (p *Twitter) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	body, err := fetchJSON(ctx, p.httpClient, p.profileURL+"?user.fields=profile_image_url", token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("twitter profile fetch failed: %w", err)
	}

	var payload struct {
		Data struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Username        string `json:"username"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("twitter profile parse failed: %w", err)
	}
	if payload.Data.ID == "" {
		return nil, errors.New("twitter profile missing user id")
	}

	return &Profile{
		ID:          payload.Data.ID,
		Login:       payload.Data.Username,
		DisplayName: payload.Data.Name,
		AvatarURL:   payload.Data.ProfileImageURL,
		Raw:         body,
	}, nil
}
