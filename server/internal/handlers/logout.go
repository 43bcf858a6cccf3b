package handlers

import (
	"log/slog"
	"net/http"
)

// Logout revokes the current session and clears the cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, err := h.sessionManager.GetToken(r); err == nil && token != "" {
		// Revoke server-side so the token is dead even if the cookie
		// survives somewhere
		if err := h.sessions.RevokeByToken(r.Context(), token); err != nil {
			h.log.Warn("failed to revoke session on logout",
				slog.String("error", err.Error()))
		}
	}

	if err := h.sessionManager.ClearToken(r, w); err != nil {
		h.log.Error("error clearing session cookie",
			slog.String("error", err.Error()))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
