package repositories

import (
	"context"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
)

// AuditRepository defines the interface for audit log data access
type AuditRepository interface {
	// Create a new audit log entry
	Create(ctx context.Context, log *entities.AuditLog) error

	// GetByID retrieves an audit log by its ID
	GetByID(ctx context.Context, id string) (*entities.AuditLog, error)

	// List audit logs with filtering and pagination
	List(ctx context.Context, opts ListAuditLogsOptions) ([]*entities.AuditLog, int64, error)

	// DeleteBefore removes audit logs older than the given time (cleanup job)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)

	// CountFailedLoginsByIP counts failed login attempts from an IP within a time range
	CountFailedLoginsByIP(ctx context.Context, ipAddress string, since time.Time) (int64, error)

	// GetRecentActivityByAccount gets recent activity for an account
	GetRecentActivityByAccount(ctx context.Context, accountID string, limit int) ([]*entities.AuditLog, error)
}

// ListAuditLogsOptions provides filtering and pagination options for listing audit logs
type ListAuditLogsOptions struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	AccountID     *string                 // filter by account ID
	Action        *entities.AuditAction   // filter by specific action
	Actions       []entities.AuditAction  // filter by multiple actions
	Resource      *entities.AuditResource // filter by resource type
	ResourceID    *string                 // filter by specific resource ID
	Success       *bool                   // filter by success status
	IPAddress     *string                 // filter by IP address
	CreatedAfter  *time.Time              // filter by creation date
	CreatedBefore *time.Time              // filter by creation date

	// Special filters
	FailedOnly bool // only return failed events

	// Sorting
	SortBy    string // field to sort by (created_at, action, resource, success)
	SortOrder string // asc or desc
}
