// Package server wires the HTTP surface: chat, OAuth flows, session
// endpoints and health.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pysugar/digital-twin/internal/agent"
	"github.com/pysugar/digital-twin/internal/auth/provider"
	"github.com/pysugar/digital-twin/internal/auth/session"
	"github.com/pysugar/digital-twin/internal/auth/token"
	"github.com/pysugar/digital-twin/internal/config"
	"github.com/pysugar/digital-twin/internal/logging"
	"github.com/pysugar/digital-twin/internal/version"
	"gorm.io/gorm"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Providers *provider.Registry
	Tokens    *token.Manager
	Sessions  *session.Sessions
	Loop      *agent.Loop
}

// Router assembles the full route table.
func Router(d Deps) http.Handler {
	states := newStateStore()

	r := chi.NewRouter()
	r.Use(logging.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		// Session rides on a cookie, so the frontend origin must be
		// explicit; a wildcard would disable credentialed requests.
		AllowedOrigins:   []string{d.Config.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Get("/", RootHandler())
	r.Get("/health", HealthHandler())

	r.Post("/chat", ChatHandler(d.Loop, d.Sessions))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/{provider}/login", LoginHandler(d.Config, d.Providers, d.Sessions, states))
		r.Get("/{provider}/callback", CallbackHandler(d.Config, d.DB, d.Tokens, d.Sessions, states))
		r.Get("/me", MeHandler(d.DB, d.Tokens, d.Sessions))
		r.Post("/logout", LogoutHandler(d.Sessions))
		r.Delete("/disconnect/{provider}", DisconnectHandler(d.DB, d.Tokens, d.Sessions))
	})

	return r
}

// RootHandler identifies the service.
func RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service": "digital-twin",
			"version": version.Version,
		})
	}
}

// HealthHandler reports liveness.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}
