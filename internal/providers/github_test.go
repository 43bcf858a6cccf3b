package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/gatekeeper/internal/config"
)

func newTestGitHub(t *testing.T, cfg config.ProviderConfig) *GitHub {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "github"
	}
	cfg.Kind = "github"
	if cfg.ClientID == "" {
		cfg.ClientID = "client-id"
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = "client-secret"
	}
	provider, err := NewGitHub("https://login.example.com", cfg)
	if err != nil {
		t.Fatalf("NewGitHub() error = %v", err)
	}
	return provider
}

func TestGitHubAuthCodeURL(t *testing.T) {
	provider := newTestGitHub(t, config.ProviderConfig{})

	rawURL := provider.AuthCodeURL("state-123", "challenge-abc")
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("failed to parse auth URL: %v", err)
	}

	if !strings.HasPrefix(rawURL, githubAuthURL) {
		t.Errorf("auth URL %q does not start with %q", rawURL, githubAuthURL)
	}

	query := parsed.Query()
	checks := map[string]string{
		"state":                 "state-123",
		"code_challenge":        "challenge-abc",
		"code_challenge_method": "S256",
		"client_id":             "client-id",
		"redirect_uri":          "https://login.example.com/login/github/callback",
		"response_type":         "code",
	}
	for param, want := range checks {
		if got := query.Get(param); got != want {
			t.Errorf("query[%s] = %q, want %q", param, got, want)
		}
	}
}

func TestGitHubExchangeSendsVerifier(t *testing.T) {
	var gotVerifier string
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token request form: %v", err)
		}
		gotVerifier = r.FormValue("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_token","token_type":"bearer"}`))
	}))
	defer tokenServer.Close()

	provider := newTestGitHub(t, config.ProviderConfig{TokenURL: tokenServer.URL})

	token, err := provider.Exchange(context.Background(), "auth-code", "verifier-xyz")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if token.AccessToken != "gho_token" {
		t.Errorf("access token = %q, want gho_token", token.AccessToken)
	}
	if gotVerifier != "verifier-xyz" {
		t.Errorf("code_verifier = %q, want verifier-xyz", gotVerifier)
	}
}

func TestGitHubExchangeFailure(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad_verification_code"}`))
	}))
	defer tokenServer.Close()

	provider := newTestGitHub(t, config.ProviderConfig{TokenURL: tokenServer.URL})

	if _, err := provider.Exchange(context.Background(), "stale-code", "verifier"); err == nil {
		t.Fatal("expected error for rejected authorization code")
	}
}

func TestGitHubFetchProfile(t *testing.T) {
	profileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer gho_token" {
			t.Errorf("Authorization header = %q, want Bearer gho_token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":42,"login":"amal","name":"Amal","email":null,"avatar_url":"https://avatars.example.com/u/42"}`))
	}))
	defer profileServer.Close()

	provider := newTestGitHub(t, config.ProviderConfig{ProfileURL: profileServer.URL})

	profile, err := provider.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "gho_token"})
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}

	// The numeric GitHub id becomes a plain decimal string.
	if profile.ID != "42" {
		t.Errorf("profile ID = %q, want 42", profile.ID)
	}
	if profile.Login != "amal" {
		t.Errorf("profile login = %q, want amal", profile.Login)
	}
	if profile.DisplayName != "Amal" {
		t.Errorf("profile display name = %q, want Amal", profile.DisplayName)
	}
	if profile.Email != "" {
		t.Errorf("profile email = %q, want empty for private email", profile.Email)
	}
	if len(profile.Raw) == 0 {
		t.Error("expected raw profile document to be retained")
	}
}

func TestGitHubFetchProfileErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"Bad credentials"}`},
		{"server error", http.StatusInternalServerError, `oops`},
		{"missing id", http.StatusOK, `{"login":"ghost"}`},
		{"malformed json", http.StatusOK, `{"id":`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			profileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer profileServer.Close()

			provider := newTestGitHub(t, config.ProviderConfig{ProfileURL: profileServer.URL})
			if _, err := provider.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "t"}); err == nil {
				t.Error("expected profile fetch error")
			}
		})
	}
}
