package handlers

import (
	"fmt"
	"net/http"

	"github.com/devilmonastery/gatekeeper/server/internal/middleware"
	"github.com/devilmonastery/gatekeeper/server/internal/render"
	"github.com/gorilla/mux"
)

// Router builds the public HTTP router: browser pages, the OAuth login
// endpoints, and the JSON admin API
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()

	// Session resolution runs first so the request log can attribute
	// requests to accounts
	router.Use(middleware.Sessions(h.sessionManager, h.sessions), middleware.LogRequest)

	// Health check endpoint (no auth required)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	// Version info endpoint
	router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s"}`, render.Version)
	}).Methods("GET")

	// Browser surface
	router.HandleFunc("/", h.Home).Methods("GET")
	router.HandleFunc("/login", h.LoginPage).Methods("GET")
	router.HandleFunc("/login/{provider}", h.StartLogin).Methods("GET")
	router.HandleFunc("/login/{provider}/callback", h.Callback).Methods("GET")
	router.HandleFunc("/logout", h.Logout).Methods("GET", "POST")

	// Admin API
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", h.AdminLogin).Methods("POST")

	// Any valid token can introspect itself
	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.RequireToken(h.authService))
	authed.HandleFunc("/session", h.CurrentToken).Methods("GET")

	// Everything else requires the admin role
	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.RequireToken(h.authService), middleware.RequireAdmin)
	admin.HandleFunc("/providers", h.ListProviders).Methods("GET")
	admin.HandleFunc("/accounts", h.ListAccounts).Methods("GET")
	admin.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	admin.HandleFunc("/accounts/{id}/disable", h.DisableAccount).Methods("POST")
	admin.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	admin.HandleFunc("/sessions", h.RevokeAccountSessions).Methods("DELETE")
	admin.HandleFunc("/sessions/{id}", h.RevokeSession).Methods("DELETE")

	return router
}
