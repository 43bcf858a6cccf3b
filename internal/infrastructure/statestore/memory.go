// Package statestore provides the login state token backends. State tokens
// are short-lived and single-use; the memory backend serves single-instance
// deployments, while the redis backend lets any instance answer a callback.
// A postgres-backed implementation lives with the other database repositories.
package statestore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
)

// Memory is an in-process state store. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	states map[string]entities.LoginState
}

var _ repositories.StateRepository = (*Memory)(nil)

// NewMemory creates an empty in-memory state store
func NewMemory() *Memory {
	return &Memory{
		states: make(map[string]entities.LoginState),
	}
}

// Issue stores a login state record
func (m *Memory) Issue(ctx context.Context, state *entities.LoginState) error {
	if state.Token == "" {
		return errors.New("state token is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Token] = *state
	return nil
}

// Consume removes and returns the record for the token. Deletion happens
// under the same lock as the lookup, so concurrent consumers of one token
// see exactly one winner.
func (m *Memory) Consume(ctx context.Context, token string) (*entities.LoginState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[token]
	if !ok {
		return nil, repositories.ErrStateNotFound
	}
	delete(m.states, token)

	// An expired record is still deleted, but never returned.
	if state.IsExpired() {
		return nil, repositories.ErrStateNotFound
	}
	return &state, nil
}

// PurgeExpired drops records whose expiry is before the given time
func (m *Memory) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for token, state := range m.states {
		if state.ExpiresAt.Before(before) {
			delete(m.states, token)
			purged++
		}
	}
	return purged, nil
}

// Len reports the number of stored states, expired or not
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
