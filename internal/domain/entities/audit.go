package entities

import (
	"encoding/json"
	"time"
)

// AuditLog represents a security audit log entry
type AuditLog struct {
	ID         string         `json:"id" db:"id"`
	AccountID  *string        `json:"account_id,omitempty" db:"account_id"` // null for system events
	Action     AuditAction    `json:"action" db:"action"`
	Resource   AuditResource  `json:"resource" db:"resource"`
	ResourceID *string        `json:"resource_id,omitempty" db:"resource_id"`
	IPAddress  *string        `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string        `json:"user_agent,omitempty" db:"user_agent"`
	Metadata   map[string]any `json:"metadata,omitempty" db:"metadata"` // stored as JSON in DB
	Success    bool           `json:"success" db:"success"`
	ErrorMsg   *string        `json:"error_message,omitempty" db:"error_message"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// AuditAction represents the type of action being audited
type AuditAction string

const (
	// Login flow actions
	ActionLoginStarted   AuditAction = "login.started"
	ActionLoginCompleted AuditAction = "login.completed"
	ActionLoginFailed    AuditAction = "login.failed"
	ActionLogout         AuditAction = "login.logout"

	// Account actions
	ActionAccountCreated  AuditAction = "account.created"
	ActionAccountUpdated  AuditAction = "account.updated"
	ActionAccountDisabled AuditAction = "account.disabled"

	// Identity actions
	ActionIdentityLinked  AuditAction = "identity.linked"
	ActionIdentityUpdated AuditAction = "identity.updated"

	// Session actions
	ActionSessionCreated AuditAction = "session.created"
	ActionSessionRevoked AuditAction = "session.revoked"

	// Admin API actions
	ActionTokenIssued     AuditAction = "token.issued"
	ActionAdminAuthFailed AuditAction = "token.auth_failed"

	// System actions
	ActionSystemStartup  AuditAction = "system.startup"
	ActionSystemShutdown AuditAction = "system.shutdown"
)

// AuditResource represents the type of resource being acted upon
type AuditResource string

const (
	ResourceAccount    AuditResource = "account"
	ResourceIdentity   AuditResource = "identity"
	ResourceSession    AuditResource = "session"
	ResourceLoginState AuditResource = "login_state"
	ResourceSystem     AuditResource = "system"
)

// NewAuditLog creates a new audit log entry
func NewAuditLog(accountID *string, action AuditAction, resource AuditResource) *AuditLog {
	return &AuditLog{
		AccountID: accountID,
		Action:    action,
		Resource:  resource,
		Success:   true,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// WithResourceID sets the resource ID
func (a *AuditLog) WithResourceID(resourceID string) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithIPAddress sets the IP address
func (a *AuditLog) WithIPAddress(ip string) *AuditLog {
	a.IPAddress = &ip
	return a
}

// WithUserAgent sets the user agent
func (a *AuditLog) WithUserAgent(userAgent string) *AuditLog {
	a.UserAgent = &userAgent
	return a
}

// WithError marks the audit log as failed with an error message
func (a *AuditLog) WithError(err error) *AuditLog {
	a.Success = false
	msg := err.Error()
	a.ErrorMsg = &msg
	return a
}

// WithMetadata adds metadata to the audit log
func (a *AuditLog) WithMetadata(key string, value any) *AuditLog {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = value
	return a
}

// MarshalMetadataToJSON converts metadata map to JSON string for database storage
func (a *AuditLog) MarshalMetadataToJSON() (string, error) {
	if a.Metadata == nil {
		return "{}", nil
	}
	data, err := json.Marshal(a.Metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalMetadataFromJSON converts JSON string from database to metadata map
func (a *AuditLog) UnmarshalMetadataFromJSON(data string) error {
	if data == "" || data == "{}" {
		a.Metadata = make(map[string]any)
		return nil
	}
	return json.Unmarshal([]byte(data), &a.Metadata)
}

// IsAuthentication returns true if this is an authentication-related action
func (a *AuditLog) IsAuthentication() bool {
	switch a.Action {
	case ActionLoginStarted, ActionLoginCompleted, ActionLoginFailed, ActionLogout,
		ActionTokenIssued, ActionAdminAuthFailed:
		return true
	default:
		return false
	}
}

// IsAccountAction returns true if this action was performed by an account (not system)
func (a *AuditLog) IsAccountAction() bool {
	return a.AccountID != nil
}
