package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/pkg/metrics"
	"github.com/gorilla/mux"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// LogRequest logs HTTP requests and records request metrics
func LogRequest(next http.Handler) http.Handler {
	log := slog.With(slog.String("component", "http"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip logging health checks to reduce noise
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		metrics.HTTPActiveRequests.Inc()
		defer metrics.HTTPActiveRequests.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     200, // default if WriteHeader not called
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		// Label metrics with the route pattern rather than the raw path to
		// keep cardinality bounded
		pattern := routePattern(r)
		metrics.HTTPRequests.WithLabelValues(r.Method, pattern, strconv.Itoa(wrapped.statusCode)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, pattern).Observe(float64(duration.Milliseconds()))

		attrs := []any{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", wrapped.statusCode),
			slog.Int64("duration_ms", duration.Milliseconds()),
			slog.Int64("bytes", wrapped.written),
			slog.String("client_ip", ClientIP(r)),
			slog.String("user_agent", r.UserAgent()),
		}

		// Add account info when the session middleware resolved one
		if account := AccountFromContext(r.Context()); account != nil {
			attrs = append(attrs,
				slog.String("account_id", account.ID),
				slog.String("username", account.Username))
		}

		switch {
		case wrapped.statusCode >= 500:
			log.Error("request", attrs...)
		case wrapped.statusCode >= 400:
			log.Warn("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	})
}

// routePattern returns the matched mux route template, falling back to the
// raw path when the request didn't go through the router
func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// ClientIP returns the real client IP, honoring proxy headers when present
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
