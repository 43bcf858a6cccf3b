package entities

import "time"

// Session represents an authenticated browser session. The token is the
// opaque value stored in the user's cookie; everything else is bookkeeping.
type Session struct {
	ID        string     `json:"id" db:"id"`
	Token     string     `json:"-" db:"token"` // opaque bearer value, never serialize to JSON
	AccountID string     `json:"account_id" db:"account_id"`
	IPAddress *string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// IsExpired returns true if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsRevoked returns true if the session was explicitly revoked
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// Valid returns true if the session can still authenticate requests
func (s *Session) Valid() bool {
	return !s.IsExpired() && !s.IsRevoked()
}
