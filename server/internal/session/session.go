package session

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

// TokenKey is the session value key holding the opaque session token
const TokenKey = "token"

// Manager wraps gorilla/sessions for the browser session cookie. The cookie
// carries only the opaque session token; everything else about the session
// lives server-side and is looked up per request.
type Manager struct {
	store      *sessions.CookieStore
	cookieName string
}

// NewManager creates a new session manager
// secretKey should be 32 bytes for AES-256
func NewManager(secretKey []byte, cookieName string, ttl time.Duration, secure bool) *Manager {
	store := sessions.NewCookieStore(secretKey)

	// Configure session options. SameSite must stay Lax so the cookie is
	// sent on the top-level redirect back from the OAuth provider.
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		store:      store,
		cookieName: cookieName,
	}
}

// SetToken stores the opaque session token in the cookie
func (m *Manager) SetToken(r *http.Request, w http.ResponseWriter, token string) error {
	session, err := m.store.Get(r, m.cookieName)
	if err != nil {
		// Create new session if the existing cookie doesn't decode
		session, _ = m.store.New(r, m.cookieName)
	}

	session.Values[TokenKey] = token
	return session.Save(r, w)
}

// GetToken retrieves the opaque session token from the cookie
func (m *Manager) GetToken(r *http.Request) (string, error) {
	session, err := m.store.Get(r, m.cookieName)
	if err != nil {
		return "", err
	}

	token, ok := session.Values[TokenKey].(string)
	if !ok || token == "" {
		return "", http.ErrNoCookie
	}

	return token, nil
}

// ClearToken removes the session cookie (logout)
func (m *Manager) ClearToken(r *http.Request, w http.ResponseWriter) error {
	session, err := m.store.Get(r, m.cookieName)
	if err != nil {
		return nil // Cookie doesn't decode, nothing to clear
	}

	// Set MaxAge to -1 to delete the cookie
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// HasToken checks if a session token is present
func (m *Manager) HasToken(r *http.Request) bool {
	_, err := m.GetToken(r)
	return err == nil
}
