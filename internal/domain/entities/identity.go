package entities

import (
	"encoding/json"
	"time"
)

// Identity represents an external provider identity linked to an account.
// An account can have multiple identities (e.g., GitHub + Twitter); each
// identity belongs to exactly one account and never outlives it.
type Identity struct {
	ID             string     `json:"id" db:"id"`
	AccountID      string     `json:"account_id" db:"account_id"`
	Provider       string     `json:"provider" db:"provider"`               // "github", "twitter", "google", ...
	ProviderUserID string     `json:"provider_user_id" db:"provider_user_id"` // the provider's immutable user ID, never email
	Email          string     `json:"email,omitempty" db:"email"`           // email reported by this provider
	DisplayName    string     `json:"display_name,omitempty" db:"display_name"`
	AvatarURL      string     `json:"avatar_url,omitempty" db:"avatar_url"`
	Profile        []byte     `json:"-" db:"profile"` // raw profile snapshot as returned by the provider
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty" db:"last_login_at"` // last time this identity signed in
}

// Key returns a formatted provider+provider_user_id string for logging
func (i *Identity) Key() string {
	return i.Provider + ":" + i.ProviderUserID
}

// ProfileField extracts a single string field from the raw profile snapshot.
// Returns "" when the snapshot is missing or the field is not a string.
func (i *Identity) ProfileField(name string) string {
	if len(i.Profile) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(i.Profile, &m); err != nil {
		return ""
	}
	if v, ok := m[name].(string); ok {
		return v
	}
	return ""
}
