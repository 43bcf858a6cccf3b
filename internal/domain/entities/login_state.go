package entities

import "time"

// LoginState represents one in-flight login attempt: the anti-forgery state
// token handed to the provider plus everything needed to finish the flow when
// the callback arrives. Single-use; consumed (deleted) on first lookup.
type LoginState struct {
	Token          string    `json:"token" db:"token"`                     // crypto-random, carried in the state query param
	Provider       string    `json:"provider" db:"provider"`               // provider that must answer the callback
	RedirectTarget string    `json:"redirect_target" db:"redirect_target"` // where to send the browser after login
	CodeVerifier   string    `json:"-" db:"code_verifier"`                 // PKCE verifier, never serialize to JSON
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	ExpiresAt      time.Time `json:"expires_at" db:"expires_at"`
}

// IsExpired returns true if the login attempt has expired
func (s *LoginState) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
