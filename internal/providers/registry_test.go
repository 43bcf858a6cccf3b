package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/gatekeeper/internal/config"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) AuthCodeURL(state, codeChallenge string) string { return "" }

func (s *stubProvider) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	return nil, errors.New("not implemented")
}

func TestRegistryGet(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubProvider{name: "github"})

	provider, err := registry.Get("github")
	if err != nil {
		t.Fatalf("Get(github) error = %v", err)
	}
	if provider.Name() != "github" {
		t.Errorf("provider name = %q, want github", provider.Name())
	}

	_, err = registry.Get("gitlab")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Get(gitlab) error = %v, want ErrUnknownProvider", err)
	}
}

func TestRegistryListOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubProvider{name: "twitter"})
	registry.Register(&stubProvider{name: "github"})
	registry.Register(&stubProvider{name: "google"})

	got := registry.List()
	want := []string{"twitter", "github", "google"}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d names, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfgs := []config.ProviderConfig{
		{Name: "github", Kind: "github", ClientID: "id", ClientSecret: "secret"},
		{Name: "twitter", Kind: "twitter", ClientID: "id", ClientSecret: "secret"},
	}

	registry, err := NewRegistryFromConfig(context.Background(), "https://login.example.com", cfgs)
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error = %v", err)
	}

	for _, name := range []string{"github", "twitter"} {
		if _, err := registry.Get(name); err != nil {
			t.Errorf("Get(%s) error = %v", name, err)
		}
	}
}

func TestNewRegistryFromConfigUnknownKind(t *testing.T) {
	cfgs := []config.ProviderConfig{
		{Name: "mystery", Kind: "saml", ClientID: "id", ClientSecret: "secret"},
	}

	_, err := NewRegistryFromConfig(context.Background(), "https://login.example.com", cfgs)
	if err == nil {
		t.Fatal("expected error for unsupported provider kind")
	}
}

func TestNewRegistryFromConfigOIDCDiscovery(t *testing.T) {
	var issuer string
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/auth",
			"token_endpoint":         issuer + "/token",
			"jwks_uri":               issuer + "/keys",
			"userinfo_endpoint":      issuer + "/userinfo",
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	issuer = server.URL

	cfgs := []config.ProviderConfig{
		{Name: "corp", Kind: "oidc", ClientID: "id", ClientSecret: "secret", Issuer: server.URL},
	}

	registry, err := NewRegistryFromConfig(context.Background(), "https://login.example.com", cfgs)
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error = %v", err)
	}
	if _, err := registry.Get("corp"); err != nil {
		t.Errorf("Get(corp) error = %v", err)
	}
}
