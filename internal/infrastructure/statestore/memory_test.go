package statestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
)

func testState(token string, ttl time.Duration) *entities.LoginState {
	now := time.Now()
	return &entities.LoginState{
		Token:          token,
		Provider:       "github",
		RedirectTarget: "/dashboard",
		CodeVerifier:   "verifier-" + token,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}

func TestMemoryIssueAndConsume(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Issue(ctx, testState("tok-1", time.Minute)); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	state, err := store.Consume(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if state.Provider != "github" {
		t.Errorf("provider = %q, want github", state.Provider)
	}
	if state.RedirectTarget != "/dashboard" {
		t.Errorf("redirect target = %q, want /dashboard", state.RedirectTarget)
	}
	if state.CodeVerifier != "verifier-tok-1" {
		t.Errorf("code verifier = %q, want verifier-tok-1", state.CodeVerifier)
	}
}

func TestMemoryConsumeIsSingleUse(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Issue(ctx, testState("tok-1", time.Minute)); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := store.Consume(ctx, "tok-1"); err != nil {
		t.Fatalf("first Consume() error = %v", err)
	}
	if _, err := store.Consume(ctx, "tok-1"); !errors.Is(err, repositories.ErrStateNotFound) {
		t.Errorf("second Consume() error = %v, want ErrStateNotFound", err)
	}
}

func TestMemoryConsumeUnknownToken(t *testing.T) {
	store := NewMemory()

	_, err := store.Consume(context.Background(), "never-issued")
	if !errors.Is(err, repositories.ErrStateNotFound) {
		t.Errorf("Consume() error = %v, want ErrStateNotFound", err)
	}
}

func TestMemoryConsumeExpired(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Issue(ctx, testState("tok-old", -time.Minute)); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := store.Consume(ctx, "tok-old"); !errors.Is(err, repositories.ErrStateNotFound) {
		t.Errorf("Consume() of expired state error = %v, want ErrStateNotFound", err)
	}
	// The expired record must be gone, not lingering.
	if store.Len() != 0 {
		t.Errorf("store size = %d after consuming expired state, want 0", store.Len())
	}
}

func TestMemoryConcurrentConsumeOneWinner(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Issue(ctx, testState("tok-race", time.Minute)); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	const callers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	losers := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Consume(ctx, "tok-race")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, repositories.ErrStateNotFound):
				losers++
			default:
				t.Errorf("unexpected Consume() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
	if losers != callers-1 {
		t.Errorf("losers = %d, want %d", losers, callers-1)
	}
}

func TestMemoryPurgeExpired(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Issue(ctx, testState("tok-live", time.Minute)); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := store.Issue(ctx, testState("tok-dead", -time.Minute)); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	purged, err := store.PurgeExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	if _, err := store.Consume(ctx, "tok-live"); err != nil {
		t.Errorf("Consume(tok-live) after purge error = %v", err)
	}
	if _, err := store.Consume(ctx, "tok-dead"); !errors.Is(err, repositories.ErrStateNotFound) {
		t.Errorf("Consume(tok-dead) error = %v, want ErrStateNotFound", err)
	}
}
