package handlers

import (
	"log/slog"
	"net/http"

	"github.com/devilmonastery/gatekeeper/server/internal/middleware"
)

// Home renders the landing page. Signed-in users see their account and
// linked identities; everyone else gets a sign-in prompt.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	data := h.newTemplateData(r)
	data["CurrentPage"] = "home"

	if account := middleware.AccountFromContext(r.Context()); account != nil {
		// Re-read with identities so the page can list linked providers
		full, err := h.accounts.GetAccount(r.Context(), account.ID)
		if err != nil {
			h.log.Error("failed to load account for home page",
				slog.String("account_id", account.ID),
				slog.String("error", err.Error()))
		} else {
			data["Account"] = full
			data["Identities"] = full.Identities
		}
	}

	h.renderTemplate(w, "home.html", data)
}
