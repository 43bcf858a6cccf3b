package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/devilmonastery/gatekeeper/internal/config"
)

// OIDC authenticates users against any OpenID Connect identity provider
// (Google, Okta, Keycloak, ...). Endpoints and signing keys come from
// issuer discovery, performed once at startup.
type OIDC struct {
	name     string
	oauth    *oauth2.Config
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// oidcClaims are the standard claims we read from the ID token or the
// userinfo endpoint. sub is required; everything else is optional.
type oidcClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
}

// NewOIDC creates a provider from configuration, running issuer discovery.
// The context bounds the discovery request.
func NewOIDC(ctx context.Context, publicURL string, cfg config.ProviderConfig) (*OIDC, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client_id is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}

	oidcProvider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed for %s: %w", cfg.Issuer, err)
	}

	verifier := oidcProvider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
	})

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDC{
		name: cfg.Name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  callbackURL(publicURL, cfg.Name),
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       scopes,
		},
		provider: oidcProvider,
		verifier: verifier,
	}, nil
}

// Name returns the provider identifier used by the registry
func (p *OIDC) Name() string {
	return p.name
}

// AuthCodeURL builds the authorization URL with PKCE parameters
func (p *OIDC) AuthCodeURL(state, codeChallenge string) string {
	return p.oauth.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange trades the authorization code for provider credentials
func (p *OIDC) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	token, err := p.oauth.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("%s token exchange failed: %w", p.name, err)
	}
	return token, nil
}

// FetchProfile builds the profile from the verified ID token when the
// provider returned one, falling back to the userinfo endpoint otherwise.
// The sub claim is the immutable identifier.
func (p *OIDC) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	var raw json.RawMessage

	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("%s id_token verification failed: %w", p.name, err)
		}
		if err := idToken.Claims(&raw); err != nil {
			return nil, fmt.Errorf("%s id_token claims parse failed: %w", p.name, err)
		}
	} else {
		userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			return nil, fmt.Errorf("%s userinfo request failed: %w", p.name, err)
		}
		if err := userInfo.Claims(&raw); err != nil {
			return nil, fmt.Errorf("%s userinfo claims parse failed: %w", p.name, err)
		}
	}

	var claims oidcClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%s claims parse failed: %w", p.name, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s profile missing sub claim", p.name)
	}

	return &Profile{
		ID:          claims.Subject,
		Login:       claims.PreferredUsername,
		DisplayName: claims.Name,
		Email:       claims.Email,
		AvatarURL:   claims.Picture,
		Raw:         raw,
	}, nil
}
