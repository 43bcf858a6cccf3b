package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/auth"
	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
	"github.com/devilmonastery/gatekeeper/internal/domain/repositories"
	"github.com/devilmonastery/gatekeeper/server/internal/middleware"
	"github.com/gorilla/mux"
)

// ProviderInfo describes a configured provider for the admin API. Secrets
// never leave the config.
type ProviderInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// AdminLogin exchanges a username+password for an admin API token
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		middleware.WriteJSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	ipAddress, userAgent := h.clientInfo(r)
	token, expiresAt, account, err := h.authService.Login(r.Context(), req.Username, req.Password, ipAddress, userAgent)
	if err != nil {
		// Always the same answer, whatever actually went wrong
		middleware.WriteJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
		"account":    account,
	})
}

// CurrentToken introspects the presented bearer token
func (h *Handler) CurrentToken(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.GetAccountFromContext(r.Context())
	if err != nil {
		middleware.WriteJSONError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id":   claims.AccountID,
		"username":     claims.Username,
		"display_name": claims.DisplayName,
		"role":         claims.Role,
		"token_id":     claims.TokenID,
	})
}

// ListProviders returns the configured provider names and kinds
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.providerInfos,
	})
}

// ListAccounts returns accounts with pagination and filters
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	opts := repositories.ListAccountsOptions{
		Limit:     queryInt(query.Get("limit"), 50),
		Offset:    queryInt(query.Get("offset"), 0),
		Search:    query.Get("search"),
		SortBy:    query.Get("sort"),
		SortOrder: query.Get("order"),
	}
	if roleParam := query.Get("role"); roleParam != "" {
		role := entities.Role(roleParam)
		opts.Role = &role
	}
	if disabledParam := query.Get("disabled"); disabledParam != "" {
		disabled := disabledParam == "true"
		opts.Disabled = &disabled
	}

	accounts, total, err := h.accounts.ListAccounts(r.Context(), opts)
	if err != nil {
		h.log.Error("failed to list accounts", slog.String("error", err.Error()))
		middleware.WriteJSONError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"total":    total,
	})
}

// GetAccount returns one account with its linked identities
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			middleware.WriteJSONError(w, http.StatusNotFound, "account not found")
			return
		}
		h.log.Error("failed to get account",
			slog.String("account_id", id),
			slog.String("error", err.Error()))
		middleware.WriteJSONError(w, http.StatusInternalServerError, "failed to get account")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"account": account})
}

// DisableAccount disables an account. Its sessions stop validating
// immediately even though the rows stay around.
func (h *Handler) DisableAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	claims, err := auth.GetAccountFromContext(r.Context())
	if err != nil {
		middleware.WriteJSONError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	if err := h.accounts.DisableAccount(r.Context(), id, claims.AccountID); err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			middleware.WriteJSONError(w, http.StatusNotFound, "account not found")
			return
		}
		h.log.Error("failed to disable account",
			slog.String("account_id", id),
			slog.String("error", err.Error()))
		middleware.WriteJSONError(w, http.StatusInternalServerError, "failed to disable account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSessions returns sessions, optionally filtered by account
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	opts := repositories.ListSessionsOptions{
		Limit:      queryInt(query.Get("limit"), 50),
		Offset:     queryInt(query.Get("offset"), 0),
		ActiveOnly: query.Get("active") == "true",
	}
	if accountID := query.Get("account_id"); accountID != "" {
		opts.AccountID = &accountID
	}

	sessions, err := h.sessions.ListSessions(r.Context(), opts)
	if err != nil {
		h.log.Error("failed to list sessions", slog.String("error", err.Error()))
		middleware.WriteJSONError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// RevokeSession revokes one session by ID
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var revokedBy *string
	if claims, err := auth.GetAccountFromContext(r.Context()); err == nil {
		revokedBy = &claims.AccountID
	}

	if err := h.sessions.Revoke(r.Context(), id, revokedBy); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			middleware.WriteJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		h.log.Error("failed to revoke session",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		middleware.WriteJSONError(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevokeAccountSessions revokes every session for one account
func (h *Handler) RevokeAccountSessions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		middleware.WriteJSONError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	var revokedBy *string
	if claims, err := auth.GetAccountFromContext(r.Context()); err == nil {
		revokedBy = &claims.AccountID
	}

	revoked, err := h.sessions.RevokeAllForAccount(r.Context(), accountID, revokedBy)
	if err != nil {
		h.log.Error("failed to revoke account sessions",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()))
		middleware.WriteJSONError(w, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"revoked": revoked})
}

// queryInt parses an integer query parameter, falling back on bad input
func queryInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
