package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/devilmonastery/gatekeeper/internal/auth"
	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/services"
	"github.com/devilmonastery/gatekeeper/server/internal/session"
	"github.com/gorilla/mux"
)

type contextKey string

const (
	accountContextKey contextKey = "browser_account"
	sessionContextKey contextKey = "browser_session"
)

// AccountFromContext returns the signed-in account, or nil when the request
// carries no valid browser session
func AccountFromContext(ctx context.Context) *entities.Account {
	account, _ := ctx.Value(accountContextKey).(*entities.Account)
	return account
}

// SessionFromContext returns the resolved browser session, or nil
func SessionFromContext(ctx context.Context) *entities.Session {
	s, _ := ctx.Value(sessionContextKey).(*entities.Session)
	return s
}

// Sessions resolves the browser session cookie and puts the account into the
// request context. Requests without a valid session proceed signed out;
// handlers decide what that means for their page.
func Sessions(manager *session.Manager, sessions *services.SessionService) mux.MiddlewareFunc {
	log := slog.With(slog.String("component", "session_middleware"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := manager.GetToken(r)
			if err != nil || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, account, err := sessions.Get(r.Context(), token)
			if err != nil {
				// Expired, revoked, or the account was disabled. Drop the
				// cookie so the browser stops presenting it.
				log.Debug("session rejected",
					slog.String("error", err.Error()))
				manager.ClearToken(r, w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey, account)
			ctx = context.WithValue(ctx, sessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireToken validates the Authorization bearer token on API routes and
// puts the token's claims into the request context
func RequireToken(authService *services.AuthService) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				WriteJSONError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			tokenString := strings.TrimPrefix(header, "Bearer ")
			if tokenString == header || tokenString == "" {
				WriteJSONError(w, http.StatusUnauthorized, "authorization header must be a bearer token")
				return
			}

			claims, err := authService.Validate(tokenString)
			if err != nil {
				WriteJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := auth.SetAccountInContext(r.Context(), &auth.AccountContext{
				AccountID:   claims.AccountID,
				Username:    claims.Username,
				DisplayName: claims.DisplayName,
				Role:        claims.Role,
				TokenID:     claims.TokenID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers whose token does not carry the admin role.
// It must run after RequireToken.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireAdmin(r.Context()); err != nil {
			WriteJSONError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteJSONError writes a JSON error body with the given status
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
