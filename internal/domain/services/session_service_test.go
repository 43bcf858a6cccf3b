package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
)

func newTestSessionService(ttl time.Duration) (*SessionService, *AccountService, *fakeStore) {
	st := newFakeStore()
	audit := &fakeAuditRepo{}
	accounts := NewAccountService(&fakeAccountRepo{st: st}, &fakeIdentityRepo{st: st}, audit)
	sessions := NewSessionService(&fakeSessionRepo{st: st}, &fakeAccountRepo{st: st}, audit, ttl)
	return sessions, accounts, st
}

func seedAccount(t *testing.T, accounts *AccountService) *entities.Account {
	t.Helper()
	account, _, err := accounts.Resolve(context.Background(), "github", githubProfile())
	if err != nil {
		t.Fatalf("seeding account: %v", err)
	}
	return account
}

func TestSessionOpenAndGet(t *testing.T) {
	sessions, accounts, _ := newTestSessionService(time.Hour)
	ctx := context.Background()
	account := seedAccount(t, accounts)

	ip, ua := "203.0.113.9", "test-agent/1.0"
	session, err := sessions.Open(ctx, account, &ip, &ua)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected non-empty session token")
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("expected expiry in the future")
	}

	got, gotAccount, err := sessions.Get(ctx, session.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != session.ID {
		t.Errorf("session ID = %q, want %q", got.ID, session.ID)
	}
	if gotAccount.ID != account.ID {
		t.Errorf("account ID = %q, want %q", gotAccount.ID, account.ID)
	}
	if gotAccount.PasswordHash != nil {
		t.Error("validated account must not carry the password hash")
	}
}

func TestSessionGetUnknownToken(t *testing.T) {
	sessions, _, _ := newTestSessionService(time.Hour)

	if _, _, err := sessions.Get(context.Background(), "no-such-token"); !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, _, err := sessions.Get(context.Background(), ""); !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for empty token, got %v", err)
	}
}

func TestSessionGetExpired(t *testing.T) {
	sessions, accounts, _ := newTestSessionService(-time.Minute)
	ctx := context.Background()
	account := seedAccount(t, accounts)

	session, err := sessions.Open(ctx, account, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, _, err := sessions.Get(ctx, session.Token); !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for expired session, got %v", err)
	}
}

func TestSessionRevoke(t *testing.T) {
	sessions, accounts, _ := newTestSessionService(time.Hour)
	ctx := context.Background()
	account := seedAccount(t, accounts)

	session, err := sessions.Open(ctx, account, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := sessions.Revoke(ctx, session.ID, &account.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, _, err := sessions.Get(ctx, session.Token); !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after revoke, got %v", err)
	}
}

func TestSessionGetDisabledAccount(t *testing.T) {
	sessions, accounts, _ := newTestSessionService(time.Hour)
	ctx := context.Background()
	account := seedAccount(t, accounts)

	session, err := sessions.Open(ctx, account, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := accounts.DisableAccount(ctx, account.ID, "admin-1"); err != nil {
		t.Fatalf("DisableAccount: %v", err)
	}

	// The session row is untouched but validation must fail immediately.
	if _, _, err := sessions.Get(ctx, session.Token); !errors.Is(err, repositories.ErrAccountDisabled) {
		t.Errorf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestSessionRevokeAllForAccount(t *testing.T) {
	sessions, accounts, _ := newTestSessionService(time.Hour)
	ctx := context.Background()
	account := seedAccount(t, accounts)

	for i := 0; i < 3; i++ {
		if _, err := sessions.Open(ctx, account, nil, nil); err != nil {
			t.Fatalf("Open %d: %v", i, err)
		}
	}

	revoked, err := sessions.RevokeAllForAccount(ctx, account.ID, nil)
	if err != nil {
		t.Fatalf("RevokeAllForAccount: %v", err)
	}
	if revoked != 3 {
		t.Errorf("revoked = %d, want 3", revoked)
	}

	// Idempotent: nothing left to revoke.
	revoked, err = sessions.RevokeAllForAccount(ctx, account.ID, nil)
	if err != nil {
		t.Fatalf("second RevokeAllForAccount: %v", err)
	}
	if revoked != 0 {
		t.Errorf("revoked = %d, want 0", revoked)
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	sessions, accounts, st := newTestSessionService(-time.Minute)
	ctx := context.Background()
	account := seedAccount(t, accounts)

	if _, err := sessions.Open(ctx, account, nil, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	deleted, err := sessions.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if st.sessionCount() != 0 {
		t.Errorf("session count = %d, want 0", st.sessionCount())
	}
}
