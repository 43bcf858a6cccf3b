package entities

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Account represents a local user account. Accounts are created either on
// first social login (zero or more linked identities accumulate over time) or
// directly with a password (admin accounts, no identities).
type Account struct {
	ID           string     `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        *string    `json:"email,omitempty" db:"email"`
	DisplayName  string     `json:"display_name" db:"display_name"`
	AvatarURL    *string    `json:"avatar_url,omitempty" db:"avatar_url"` // from the most recently used identity
	PasswordHash *string    `json:"-" db:"password_hash"`                 // never serialize to JSON
	Role         Role       `json:"role" db:"role"`
	Disabled     bool       `json:"disabled" db:"disabled"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`

	// Identities linked to this account, populated on demand by the service
	// layer; not a database column.
	Identities []*Identity `json:"identities,omitempty" db:"-"`
}

// Role represents account roles in the system
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// HasRole checks if the account has a specific role
func (a *Account) HasRole(role Role) bool {
	return a.Role == role
}

// IsAdmin returns true if the account is an admin
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Active returns true if the account can sign in
func (a *Account) Active() bool {
	return !a.Disabled
}

// HasPassword returns true if the account can authenticate with a password
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// VerifyPassword checks if the provided password matches the hashed password
func (a *Account) VerifyPassword(password string) bool {
	if a.PasswordHash == nil {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(*a.PasswordHash), []byte(password))
	return err == nil
}
