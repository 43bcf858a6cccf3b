package metrics

import (
	"strings"
	"time"
)

// RecordDBOperation records database operation metrics consistently
// repo: repository name (e.g., "account", "identity", "session", "login_state")
// operation: operation name (e.g., "create", "get", "update", "delete", "list", "consume")
// duration: time taken for the operation
// rowsAffected: number of rows affected/returned (-1 if not applicable)
// err: error from the operation (nil if successful)
func RecordDBOperation(repo, operation string, duration time.Duration, rowsAffected int64, err error) {
	ms := float64(duration.Milliseconds())
	DBDuration.WithLabelValues(repo, operation).Observe(ms)

	if rowsAffected >= 0 {
		DBRowsAffected.WithLabelValues(repo, operation).Observe(float64(rowsAffected))
	}

	status := "success"
	if err != nil {
		status = "error"
		DBErrors.WithLabelValues(repo, operation, classifyDBError(err)).Inc()
	}
	DBOperations.WithLabelValues(repo, operation, status).Inc()
}

// RecordProviderRequest records an outbound provider call (token exchange or
// profile fetch) with its HTTP-level outcome.
func RecordProviderRequest(provider, endpoint string, duration time.Duration, err error) {
	ms := float64(duration.Milliseconds())
	ProviderRequestDuration.WithLabelValues(provider, endpoint).Observe(ms)

	status := "success"
	if err != nil {
		status = "error"
	}
	ProviderRequests.WithLabelValues(provider, endpoint, status).Inc()
}

// RecordLogin records the outcome of a completed (or failed) login attempt.
func RecordLogin(provider, outcome string, duration time.Duration) {
	LoginAttempts.WithLabelValues(provider, outcome).Inc()
	LoginDuration.WithLabelValues(provider).Observe(float64(duration.Milliseconds()))
}

// classifyDBError categorizes database errors for metrics
func classifyDBError(err error) string {
	if err == nil {
		return "none"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "duplicate") || strings.Contains(errStr, "unique constraint"):
		return "duplicate"
	case strings.Contains(errStr, "not found") || strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return "timeout"
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "connect"):
		return "connection"
	case strings.Contains(errStr, "foreign key") || strings.Contains(errStr, "fk_"):
		return "foreign_key"
	case strings.Contains(errStr, "constraint"):
		return "constraint"
	case strings.Contains(errStr, "deadlock"):
		return "deadlock"
	case strings.Contains(errStr, "syntax"):
		return "syntax"
	default:
		return "other"
	}
}
