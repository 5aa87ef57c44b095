/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the desk frontend

ROUTE GROUPS:
  /api/accounts/*       Enrollment, lookup, deposits, withdrawals
  /api/admin/*          Fixed-account reset, duplicate cleanup
  /api/health           Liveness probe

SECURITY NOTE:
  No authentication middleware currently. The server is meant to sit on
  the cooperative's local network behind the operator desk.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.Enroll)
			r.Get("/{number}", h.GetAccount)
			r.Get("/{number}/booklet", h.GetBooklet)
			r.Get("/{number}/operations", h.ListOperations)
			r.Post("/{number}/deposits", h.Deposit)
			r.Post("/{number}/withdrawals", h.Withdraw)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/accounts/{number}/reset", h.ResetAccount)
			r.Get("/accounts/{number}/audit", h.AuditTrail)
			r.Get("/duplicates", h.ListDuplicates)
			r.Post("/duplicates/cleanup", h.CleanupDuplicates)
		})

		// Health check
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
