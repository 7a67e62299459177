// Package server assembles the HTTP routes and runs the listener.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ayush/secrets-app/backend/internal/auth"
	"github.com/ayush/secrets-app/backend/internal/middleware"
	"github.com/ayush/secrets-app/backend/internal/observability"
	"github.com/ayush/secrets-app/backend/internal/secrets"
	"github.com/ayush/secrets-app/backend/internal/web"
)

// Store is the credential store both handler groups share.
type Store interface {
	auth.UserStore
	secrets.SecretStore
}

// Deps are the collaborators the router needs.
type Deps struct {
	Store    Store
	Sessions *auth.SessionStore
	Hasher   auth.PasswordHasher
	// Provider is nil when federated login is not configured.
	Provider       auth.FederatedProvider
	Assets         http.Handler
	Registry       *prometheus.Registry
	Metrics        *observability.Metrics
	Logger         zerolog.Logger
	AllowedOrigins []string
}

// NewRouter builds the full route table.
func NewRouter(d Deps) (http.Handler, error) {
	pages, err := web.NewRenderer(d.Provider != nil)
	if err != nil {
		return nil, err
	}
	svc, err := auth.NewService(d.Store, d.Hasher)
	if err != nil {
		return nil, err
	}
	authHandler := auth.NewHandler(svc, d.Sessions, d.Provider, pages, d.Metrics)
	secretsHandler := secrets.NewHandler(d.Store, d.Sessions, pages, d.Metrics)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if d.Registry != nil {
		r.Handle("/metrics", observability.Handler(d.Registry))
	}
	if d.Assets != nil {
		r.Handle("/public/*", http.StripPrefix("/public", d.Assets))
	}

	// Public pages
	r.With(middleware.LoadIdentity(d.Sessions)).Get("/", secretsHandler.Home)
	r.Get("/login", authHandler.LoginPage)
	r.Post("/login", authHandler.Login)
	r.Get("/register", authHandler.RegisterPage)
	r.Post("/register", authHandler.Register)
	r.Get("/logout", authHandler.Logout)

	// Federated login
	r.Get("/auth/google", authHandler.GoogleLogin)
	r.Get("/auth/google/secrets", authHandler.GoogleCallback)

	// Protected pages
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Sessions))
		r.Get("/secrets", secretsHandler.List)
		r.Get("/submit", secretsHandler.SubmitPage)
		r.Post("/submit", secretsHandler.Submit)
	})

	return r, nil
}
