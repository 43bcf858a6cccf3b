package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewJWTManager("test-secret-key", time.Hour)

	tokenID, err := GenerateTokenID()
	if err != nil {
		t.Fatalf("GenerateTokenID: %v", err)
	}

	tokenString, expiresAt, err := manager.GenerateTokenWithClaims("acct-1", "amal", "Amal", "admin", tokenID)
	if err != nil {
		t.Fatalf("GenerateTokenWithClaims: %v", err)
	}
	if tokenString == "" {
		t.Fatal("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Errorf("expected expiry in the future, got %v", expiresAt)
	}

	claims, err := manager.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.AccountID != "acct-1" {
		t.Errorf("AccountID = %q, want %q", claims.AccountID, "acct-1")
	}
	if claims.Username != "amal" {
		t.Errorf("Username = %q, want %q", claims.Username, "amal")
	}
	if claims.DisplayName != "Amal" {
		t.Errorf("DisplayName = %q, want %q", claims.DisplayName, "Amal")
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want %q", claims.Role, "admin")
	}
	if claims.TokenID != tokenID {
		t.Errorf("TokenID = %q, want %q", claims.TokenID, tokenID)
	}
	if claims.Issuer != "gatekeeper-server" {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, "gatekeeper-server")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	manager := NewJWTManager("test-secret-key", -time.Minute)

	tokenString, _, err := manager.GenerateToken("acct-1", "amal", "user", "tok-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	_, err = manager.ValidateToken(tokenString)
	if err == nil {
		t.Fatal("expected error for expired token")
	}
	// The jwt library rejects expired tokens during parsing, so the
	// error surfaces wrapped as an invalid token.
	if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrInvalidToken or ErrExpiredToken, got %v", err)
	}
}

func TestValidateTokenWrongKey(t *testing.T) {
	manager := NewJWTManager("test-secret-key", time.Hour)
	other := NewJWTManager("different-key", time.Hour)

	tokenString, _, err := manager.GenerateToken("acct-1", "amal", "user", "tok-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := other.ValidateToken(tokenString); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	manager := NewJWTManager("test-secret-key", time.Hour)

	for _, tokenString := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := manager.ValidateToken(tokenString); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken(%q): expected ErrInvalidToken, got %v", tokenString, err)
		}
	}
}

func TestGenerateTokenIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id, err := GenerateTokenID()
		if err != nil {
			t.Fatalf("GenerateTokenID: %v", err)
		}
		if id == "" {
			t.Fatal("expected non-empty token ID")
		}
		if seen[id] {
			t.Fatalf("duplicate token ID: %q", id)
		}
		seen[id] = true
	}
}
