/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Timeout:    Bounds each request
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/login, /api/health   Public
  /api/*                    Bearer token required
  /api/admin/*              access_admin capability

  Write authorization happens in the engine (access.Authorize), not here.
  The capability gates below only cover read endpoints.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Authenticate, RequireCapability
  - cmd/server/main.go: Server startup
*/
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/vault-ledger/access"
)

const requestTimeout = 30 * time.Second

// DefaultOrigins are the frontend dev servers allowed by CORS.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, origins ...string) *chi.Mux {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Get("/me", h.Me)
			r.Get("/state", h.GetState)
			r.Post("/actions", h.Dispatch)

			r.With(RequireCapability(access.CapViewVault)).Get("/vault", h.GetVault)
			r.With(RequireCapability(access.CapViewProjects, access.CapViewMyProjects)).Get("/projects", h.ListProjects)
			r.With(RequireCapability(access.CapViewActivity, access.CapViewMyActivity)).Get("/activity", h.ListActivity)
			r.With(RequireCapability(access.CapViewSpending)).Get("/spending", h.ListSpending)
			r.With(RequireCapability(access.CapViewReports)).Get("/reports", h.GetReport)

			r.Route("/users", func(r chi.Router) {
				r.With(RequireCapability(access.CapViewAccounts)).Get("/", h.ListUsers)
				r.Get("/{id}/statement", h.GetStatement)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireCapability(access.CapAccessAdmin))
				r.Get("/export", h.Export)
				r.Post("/import", h.Import)
				r.Get("/audit", h.ListAudit)
				r.Get("/snapshots", h.ListSnapshots)
			})
		})
	})

	return r
}
