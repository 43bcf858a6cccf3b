package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
)

// fakeStore is the shared in-memory backing for the per-interface fakes
// below. One mutex guards everything so CreateWithIdentity keeps the
// all-or-nothing behavior the database transaction provides.
type fakeStore struct {
	mu            sync.Mutex
	accounts      map[string]*entities.Account
	usernames     map[string]string             // username -> account ID
	identities    map[string]*entities.Identity // provider:provider_user_id
	sessions      map[string]*entities.Session  // session ID
	sessionTokens map[string]string             // token -> session ID
	nextID        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:      make(map[string]*entities.Account),
		usernames:     make(map[string]string),
		identities:    make(map[string]*entities.Identity),
		sessions:      make(map[string]*entities.Session),
		sessionTokens: make(map[string]string),
	}
}

// genID must be called with st.mu held
func (st *fakeStore) genID(prefix string) string {
	st.nextID++
	return fmt.Sprintf("%s-%d", prefix, st.nextID)
}

func identityKey(provider, providerUserID string) string {
	return provider + ":" + providerUserID
}

// accountID looks up an account ID by username
func (st *fakeStore) accountID(username string) string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.usernames[username]
}

// sessionCount returns how many sessions exist
func (st *fakeStore) sessionCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

type fakeAccountRepo struct {
	st *fakeStore
}

var _ repositories.AccountRepository = (*fakeAccountRepo)(nil)

func (r *fakeAccountRepo) Create(ctx context.Context, account *entities.Account) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, taken := r.st.usernames[account.Username]; taken {
		return repositories.ErrUsernameTaken
	}
	if account.ID == "" {
		account.ID = r.st.genID("acct")
	}
	copied := *account
	r.st.accounts[account.ID] = &copied
	r.st.usernames[account.Username] = account.ID
	return nil
}

func (r *fakeAccountRepo) CreateWithIdentity(ctx context.Context, account *entities.Account, identity *entities.Identity) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, taken := r.st.usernames[account.Username]; taken {
		return repositories.ErrUsernameTaken
	}
	if _, exists := r.st.identities[identityKey(identity.Provider, identity.ProviderUserID)]; exists {
		return repositories.ErrIdentityExists
	}

	if account.ID == "" {
		account.ID = r.st.genID("acct")
	}
	if identity.ID == "" {
		identity.ID = r.st.genID("ident")
	}
	identity.AccountID = account.ID

	copiedAccount := *account
	copiedIdentity := *identity
	r.st.accounts[account.ID] = &copiedAccount
	r.st.usernames[account.Username] = account.ID
	r.st.identities[identityKey(identity.Provider, identity.ProviderUserID)] = &copiedIdentity
	return nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id string) (*entities.Account, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	account, ok := r.st.accounts[id]
	if !ok {
		return nil, repositories.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *fakeAccountRepo) GetByUsername(ctx context.Context, username string) (*entities.Account, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	id, ok := r.st.usernames[username]
	if !ok {
		return nil, repositories.ErrAccountNotFound
	}
	copied := *r.st.accounts[id]
	return &copied, nil
}

func (r *fakeAccountRepo) Update(ctx context.Context, account *entities.Account) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	existing, ok := r.st.accounts[account.ID]
	if !ok {
		return repositories.ErrAccountNotFound
	}
	if existing.Username != account.Username {
		if _, taken := r.st.usernames[account.Username]; taken {
			return repositories.ErrUsernameTaken
		}
		delete(r.st.usernames, existing.Username)
		r.st.usernames[account.Username] = account.ID
	}
	copied := *account
	r.st.accounts[account.ID] = &copied
	return nil
}

func (r *fakeAccountRepo) UpdateLastLogin(ctx context.Context, accountID string, loginTime time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	account, ok := r.st.accounts[accountID]
	if !ok {
		return repositories.ErrAccountNotFound
	}
	account.LastLoginAt = &loginTime
	return nil
}

func (r *fakeAccountRepo) List(ctx context.Context, opts repositories.ListAccountsOptions) ([]*entities.Account, int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var out []*entities.Account
	for _, account := range r.st.accounts {
		if opts.Role != nil && account.Role != *opts.Role {
			continue
		}
		if opts.Disabled != nil && account.Disabled != *opts.Disabled {
			continue
		}
		copied := *account
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *fakeAccountRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	_, taken := r.st.usernames[username]
	return taken, nil
}

type fakeIdentityRepo struct {
	st *fakeStore
}

var _ repositories.IdentityRepository = (*fakeIdentityRepo)(nil)

func (r *fakeIdentityRepo) Create(ctx context.Context, identity *entities.Identity) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	key := identityKey(identity.Provider, identity.ProviderUserID)
	if _, exists := r.st.identities[key]; exists {
		return repositories.ErrIdentityExists
	}
	if identity.ID == "" {
		identity.ID = r.st.genID("ident")
	}
	copied := *identity
	r.st.identities[key] = &copied
	return nil
}

func (r *fakeIdentityRepo) GetByProviderUserID(ctx context.Context, provider, providerUserID string) (*entities.Identity, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	identity, ok := r.st.identities[identityKey(provider, providerUserID)]
	if !ok {
		return nil, nil
	}
	copied := *identity
	return &copied, nil
}

func (r *fakeIdentityRepo) ListByAccountID(ctx context.Context, accountID string) ([]*entities.Identity, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var out []*entities.Identity
	for _, identity := range r.st.identities {
		if identity.AccountID == accountID {
			copied := *identity
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeIdentityRepo) Update(ctx context.Context, identity *entities.Identity) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	key := identityKey(identity.Provider, identity.ProviderUserID)
	if _, ok := r.st.identities[key]; !ok {
		return repositories.ErrIdentityNotFound
	}
	copied := *identity
	r.st.identities[key] = &copied
	return nil
}

func (r *fakeIdentityRepo) Delete(ctx context.Context, identityID string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	for key, identity := range r.st.identities {
		if identity.ID == identityID {
			delete(r.st.identities, key)
			return nil
		}
	}
	return repositories.ErrIdentityNotFound
}

func (r *fakeIdentityRepo) CountByAccountID(ctx context.Context, accountID string) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	count := 0
	for _, identity := range r.st.identities {
		if identity.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

type fakeSessionRepo struct {
	st *fakeStore
}

var _ repositories.SessionRepository = (*fakeSessionRepo)(nil)

func (r *fakeSessionRepo) Create(ctx context.Context, session *entities.Session) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if session.ID == "" {
		session.ID = r.st.genID("sess")
	}
	copied := *session
	r.st.sessions[session.ID] = &copied
	r.st.sessionTokens[session.Token] = session.ID
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	session, ok := r.st.sessions[id]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) GetByToken(ctx context.Context, token string) (*entities.Session, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	id, ok := r.st.sessionTokens[token]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	copied := *r.st.sessions[id]
	return &copied, nil
}

func (r *fakeSessionRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	session, ok := r.st.sessions[id]
	if !ok || session.RevokedAt != nil {
		return repositories.ErrSessionNotFound
	}
	session.RevokedAt = &at
	return nil
}

func (r *fakeSessionRepo) RevokeAllForAccount(ctx context.Context, accountID string, at time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var revoked int64
	for _, session := range r.st.sessions {
		if session.AccountID == accountID && session.RevokedAt == nil {
			session.RevokedAt = &at
			revoked++
		}
	}
	return revoked, nil
}

func (r *fakeSessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var deleted int64
	for id, session := range r.st.sessions {
		if session.ExpiresAt.Before(before) {
			delete(r.st.sessionTokens, session.Token)
			delete(r.st.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeSessionRepo) List(ctx context.Context, opts repositories.ListSessionsOptions) ([]*entities.Session, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var out []*entities.Session
	for _, session := range r.st.sessions {
		if opts.AccountID != nil && session.AccountID != *opts.AccountID {
			continue
		}
		if opts.ActiveOnly && (session.RevokedAt != nil || session.ExpiresAt.Before(time.Now())) {
			continue
		}
		copied := *session
		out = append(out, &copied)
	}
	return out, nil
}
