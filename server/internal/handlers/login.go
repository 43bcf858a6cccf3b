package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/devilmonastery/gatekeeper/internal/domain/services"
	"github.com/devilmonastery/gatekeeper/server/internal/middleware"
	"github.com/gorilla/mux"
)

// loginFailedMessage is the only failure text shown to users. The real
// reason lands in the log and the audit trail, never in the browser.
const loginFailedMessage = "Sign-in failed. Please try again."

// LoginPage renders the provider picker
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	// Already signed in, nothing to pick
	if middleware.AccountFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := h.newTemplateData(r)
	data["CurrentPage"] = "login"
	data["Providers"] = h.login.Providers()
	data["Next"] = sanitizeNext(r.URL.Query().Get("next"))
	data["Notice"] = h.loginCfg.Message

	if r.URL.Query().Get("error") != "" {
		data["Error"] = loginFailedMessage
	}

	h.renderTemplate(w, "login.html", data)
}

// StartLogin begins the authorization code flow for one provider and
// redirects the browser to the provider's consent page
func (h *Handler) StartLogin(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["provider"]
	next := sanitizeNext(r.URL.Query().Get("next"))

	authURL, err := h.login.Begin(r.Context(), name, next)
	if err != nil {
		if errors.Is(err, services.ErrProviderNotFound) {
			http.NotFound(w, r)
			return
		}
		h.log.Error("failed to start login",
			slog.String("provider", name),
			slog.String("error", err.Error()))
		h.redirectLoginFailed(w, r)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles the provider redirect back to us. On success the browser
// gets a session cookie; every failure collapses to the same generic message.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["provider"]
	if !h.providerKnown(name) {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()

	// The provider reported an error (user denied consent, bad client
	// config). The state token is left to expire on its own.
	if errParam := query.Get("error"); errParam != "" {
		h.log.Warn("provider returned error",
			slog.String("provider", name),
			slog.String("error", errParam),
			slog.String("error_description", query.Get("error_description")))
		h.redirectLoginFailed(w, r)
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		h.redirectLoginFailed(w, r)
		return
	}

	ipAddress, userAgent := h.clientInfo(r)
	result, err := h.login.Complete(r.Context(), name, code, state, ipAddress, userAgent)
	if err != nil {
		// Complete already audited the failure with the precise reason
		h.log.Error("login failed",
			slog.String("provider", name),
			slog.String("reason", services.LoginFailureReason(err)),
			slog.String("error", err.Error()))
		h.redirectLoginFailed(w, r)
		return
	}

	if err := h.sessionManager.SetToken(r, w, result.Session.Token); err != nil {
		h.log.Error("failed to set session cookie",
			slog.String("error", err.Error()))
		h.redirectLoginFailed(w, r)
		return
	}

	target := result.RedirectTarget
	if target == "" {
		target = h.loginCfg.SuccessRedirect
	}
	if target == "" {
		target = "/"
	}

	h.log.Info("login completed",
		slog.String("provider", name),
		slog.String("account_id", result.Account.ID),
		slog.String("username", result.Account.Username),
		slog.Bool("account_created", result.Created))

	http.Redirect(w, r, target, http.StatusFound)
}

// redirectLoginFailed sends the browser back to the login page with the
// generic failure flag
func (h *Handler) redirectLoginFailed(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login?error=login_failed", http.StatusSeeOther)
}

// sanitizeNext validates a post-login redirect target. Only same-site
// relative paths survive; anything that could leave the origin is dropped.
func sanitizeNext(next string) string {
	if next == "" {
		return ""
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	// Browsers treat backslashes like slashes in URLs
	if strings.Contains(next, "\\") {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return next
}
