package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database/Repository Metrics
var (
	// DBOperations tracks total database operations
	DBOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_db_operations_total",
			Help: "Total database operations by repository, operation, and status",
		},
		[]string{"repo", "operation", "status"},
	)

	// DBDuration tracks database operation latency
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "gatekeeper_db_operation_duration_ms",
			Help:                            "Database operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBRowsAffected tracks rows affected by write operations
	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "gatekeeper_db_rows_affected",
			Help:                            "Number of rows affected by database write operations",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBRowsReturned tracks rows returned by read operations
	DBRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "gatekeeper_db_rows_returned",
			Help:                            "Number of rows returned by database read operations",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBErrors tracks database errors by type
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_db_errors_total",
			Help: "Total database errors by repository, operation, and error type",
		},
		[]string{"repo", "operation", "error_type"},
	)
)

// Login Flow Metrics
var (
	// LoginAttempts tracks login flow outcomes per provider
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_login_attempts_total",
			Help: "Total login attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// LoginDuration tracks end-to-end callback processing latency
	LoginDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "gatekeeper_login_duration_ms",
			Help:                            "Callback completion duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"provider"},
	)

	// StateTokensIssued tracks issued state tokens per provider
	StateTokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_state_tokens_issued_total",
			Help: "Total state tokens issued by provider",
		},
		[]string{"provider"},
	)

	// StateConsumeFailures tracks rejected state tokens. Backends do not
	// distinguish missing from expired, both count as not_found.
	StateConsumeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_state_consume_failures_total",
			Help: "State tokens rejected at consume time by reason (not_found, provider_mismatch)",
		},
		[]string{"reason"},
	)

	// ProviderRequests tracks outbound calls to OAuth providers
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_provider_requests_total",
			Help: "Outbound provider calls by provider, endpoint (token, profile), and status",
		},
		[]string{"provider", "endpoint", "status"},
	)

	// ProviderRequestDuration tracks outbound provider call latency
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "gatekeeper_provider_request_duration_ms",
			Help:                            "Outbound provider call duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"provider", "endpoint"},
	)
)

// Service Layer Metrics
var (
	// ServiceOperations tracks service-level operations
	ServiceOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_service_operations_total",
			Help: "Total service operations by service, method, and status",
		},
		[]string{"service", "method", "status"},
	)

	// ServiceDuration tracks service operation latency
	ServiceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "gatekeeper_service_operation_duration_ms",
			Help:                            "Service operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"service", "method"},
	)
)

// HTTP Handler Metrics
var (
	// HTTPRequests tracks HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration tracks HTTP request duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "gatekeeper_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "path"},
	)

	// HTTPActiveRequests tracks active HTTP requests
	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatekeeper_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)
)

// Business Metrics
var (
	// AccountsCreated tracks accounts created by source (provider name or "local")
	AccountsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_accounts_created_total",
			Help: "Total local accounts created by originating provider",
		},
		[]string{"provider"},
	)

	// SessionsRevoked tracks revoked sessions
	SessionsRevoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_sessions_revoked_total",
			Help: "Total sessions revoked by reason (logout, admin)",
		},
		[]string{"reason"},
	)
)
