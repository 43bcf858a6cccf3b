package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/gatekeeper/internal/config"
	"github.com/devilmonastery/gatekeeper/internal/domain/services"
	"github.com/devilmonastery/gatekeeper/server/internal/middleware"
	"github.com/devilmonastery/gatekeeper/server/internal/render"
	"github.com/devilmonastery/gatekeeper/server/internal/session"
)

// Handler holds dependencies for all web handlers
type Handler struct {
	login          *services.LoginService
	accounts       *services.AccountService
	sessions       *services.SessionService
	authService    *services.AuthService
	sessionManager *session.Manager
	templates      *render.TemplateSet
	loginCfg       config.LoginConfig
	providerInfos  []ProviderInfo
	log            *slog.Logger
}

// New creates a new handler with dependencies
func New(
	login *services.LoginService,
	accounts *services.AccountService,
	sessions *services.SessionService,
	authService *services.AuthService,
	sessionManager *session.Manager,
	templates *render.TemplateSet,
	loginCfg config.LoginConfig,
	providerInfos []ProviderInfo,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		login:          login,
		accounts:       accounts,
		sessions:       sessions,
		authService:    authService,
		sessionManager: sessionManager,
		templates:      templates,
		loginCfg:       loginCfg,
		providerInfos:  providerInfos,
		log:            logger.With(slog.String("component", "web_handler")),
	}
}

// newTemplateData creates a new template data map with standard fields populated
// Callers can add page-specific fields to the returned map
func (h *Handler) newTemplateData(r *http.Request) map[string]interface{} {
	return map[string]interface{}{
		"Account": middleware.AccountFromContext(r.Context()),
	}
}

// renderTemplate renders a template with data
func (h *Handler) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	if h.templates == nil {
		http.Error(w, "Templates not loaded", http.StatusInternalServerError)
		return
	}

	err := h.templates.Execute(w, name, data)
	if err != nil {
		h.log.Error("template rendering failed",
			slog.String("template", name),
			slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// clientInfo extracts the client IP and user agent for audit records
func (h *Handler) clientInfo(r *http.Request) (ipAddress, userAgent *string) {
	if ip := middleware.ClientIP(r); ip != "" {
		ipAddress = &ip
	}
	if ua := r.UserAgent(); ua != "" {
		userAgent = &ua
	}
	return ipAddress, userAgent
}

// writeJSON writes a JSON response body with the given status
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response",
			slog.String("error", err.Error()))
	}
}

// providerKnown reports whether a provider name is registered
func (h *Handler) providerKnown(name string) bool {
	for _, p := range h.login.Providers() {
		if p == name {
			return true
		}
	}
	return false
}
