package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/gatekeeper/internal/config"
)

func TestTwitterAuthCodeURL(t *testing.T) {
	provider, err := NewTwitter("https://login.example.com", config.ProviderConfig{
		Name:         "twitter",
		Kind:         "twitter",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
	if err != nil {
		t.Fatalf("NewTwitter() error = %v", err)
	}

	parsed, err := url.Parse(provider.AuthCodeURL("state-123", "challenge-abc"))
	if err != nil {
		t.Fatalf("failed to parse auth URL: %v", err)
	}

	query := parsed.Query()
	if got := query.Get("code_challenge_method"); got != "S256" {
		t.Errorf("code_challenge_method = %q, want S256", got)
	}
	if got := query.Get("redirect_uri"); got != "https://login.example.com/login/twitter/callback" {
		t.Errorf("redirect_uri = %q", got)
	}
	if got := query.Get("scope"); got != "users.read tweet.read" {
		t.Errorf("scope = %q, want default twitter scopes", got)
	}
}

func TestTwitterFetchProfile(t *testing.T) {
	profileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user.fields"); got != "profile_image_url" {
			t.Errorf("user.fields = %q, want profile_image_url", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"2244994945","name":"Amal","username":"amal","profile_image_url":"https://pbs.example.com/amal.png"}}`))
	}))
	defer profileServer.Close()

	provider, err := NewTwitter("https://login.example.com", config.ProviderConfig{
		Name:         "twitter",
		Kind:         "twitter",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		ProfileURL:   profileServer.URL,
	})
	if err != nil {
		t.Fatalf("NewTwitter() error = %v", err)
	}

	profile, err := provider.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "tw_token"})
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}

	// Identity comes from the data envelope, not the top-level document.
	if profile.ID != "2244994945" {
		t.Errorf("profile ID = %q, want 2244994945", profile.ID)
	}
	if profile.Login != "amal" {
		t.Errorf("profile login = %q, want amal", profile.Login)
	}
	if profile.AvatarURL != "https://pbs.example.com/amal.png" {
		t.Errorf("avatar URL = %q", profile.AvatarURL)
	}
}

func TestTwitterFetchProfileMissingID(t *testing.T) {
	profileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{}}`))
	}))
	defer profileServer.Close()

	provider, err := NewTwitter("https://login.example.com", config.ProviderConfig{
		Name:         "twitter",
		Kind:         "twitter",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		ProfileURL:   profileServer.URL,
	})
	if err != nil {
		t.Fatalf("NewTwitter() error = %v", err)
	}

	if _, err := provider.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "t"}); err == nil {
		t.Fatal("expected error for profile without an id")
	}
}
