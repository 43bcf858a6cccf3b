package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticToken struct {
	token string
}

func (s *staticToken) GetToken() (string, error) { return s.token, nil }
func (s *staticToken) ClearToken() error         { return nil }

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		address string
		want    string
		wantErr bool
	}{
		{"localhost:8080", "http://localhost:8080", false},
		{"127.0.0.1:8080", "http://127.0.0.1:8080", false},
		{"gatekeeper", "http://gatekeeper", false},
		{"gatekeeper.dontberu.de:443", "https://gatekeeper.dontberu.de:443", false},
		{"login.example.com", "https://login.example.com", false},
		{"http://example.com/", "http://example.com", false},
		{"https://example.com/auth", "https://example.com/auth", false},
		{"", "", true},
		{"ftp://example.com", "", true},
	}

	for _, tc := range tests {
		got, err := normalizeBaseURL(tc.address)
		if tc.wantErr {
			if err == nil {
				t.Errorf("normalizeBaseURL(%q): expected error, got %q", tc.address, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("normalizeBaseURL(%q): unexpected error: %v", tc.address, err)
			continue
		}
		if got != tc.want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", tc.address, got, tc.want)
		}
	}
}

func TestDoAttachesBearerToken(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"account_id": "acct-1",
			"username":   "root",
			"role":       "admin",
			"token_id":   "tok-1",
		})
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, &staticToken{token: "test-token"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	info, err := c.CurrentToken(context.Background())
	if err != nil {
		t.Fatalf("CurrentToken: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer test-token")
	}
	if info.Username != "root" || info.Role != "admin" {
		t.Errorf("unexpected token info: %+v", info)
	}
}

func TestDoSkipsAuthWithoutTokenManager(t *testing.T) {
	var sawAuth bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
		json.NewEncoder(w).Encode(map[string]interface{}{"providers": []interface{}{}})
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.ListProviders(context.Background()); err != nil {
		t.Fatalf("ListProviders: %v", err)
	}
	if sawAuth {
		t.Error("request carried an Authorization header without a token manager")
	}
}

func TestLoginSendsCredentials(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding login body: %v", err)
		}
		if req["username"] != "root" || req["password"] != "secret" {
			t.Errorf("unexpected credentials: %v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      "jwt-value",
			"expires_at": "2026-09-01T00:00:00Z",
			"account": map[string]interface{}{
				"id":       "acct-1",
				"username": "root",
				"role":     "admin",
			},
		})
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	result, err := c.Login(context.Background(), "root", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token != "jwt-value" {
		t.Errorf("token = %q, want %q", result.Token, "jwt-value")
	}
	if result.Account == nil || result.Account.Username != "root" {
		t.Errorf("unexpected account: %+v", result.Account)
	}
	if result.ExpiresAt.IsZero() {
		t.Error("expected a parsed expiry time")
	}
}

func TestErrorMapping(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/accounts/missing":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "account not found"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired token"})
		}
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, &staticToken{token: "whatever"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.GetAccount(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
	if err == nil || err.Error() != "account not found" {
		t.Errorf("expected server message to surface, got %v", err)
	}

	_, err = c.CurrentToken(context.Background())
	if !IsUnauthenticated(err) {
		t.Errorf("expected unauthenticated error, got %v", err)
	}
	if IsNotFound(err) {
		t.Error("401 should not match IsNotFound")
	}
}

func TestRevokeAccountSessions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		if got := r.URL.Query().Get("account_id"); got != "acct-1" {
			t.Errorf("account_id = %q, want %q", got, "acct-1")
		}
		json.NewEncoder(w).Encode(map[string]int{"revoked": 3})
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, &staticToken{token: "whatever"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	revoked, err := c.RevokeAccountSessions(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("RevokeAccountSessions: %v", err)
	}
	if revoked != 3 {
		t.Errorf("revoked = %d, want 3", revoked)
	}
}
