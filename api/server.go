/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in error logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       The LINE Mini-App is served from another origin

ROUTE GROUPS:
  /api/bookings/*   Booking CRUD + validation
  /api/history      Audit log
  /api/reports/*    JSON and PDF reports
  /api/users        LINE user profiles
  /api/scenarios/*  Demo data (only when Handler.Scenarios)
  /healthz          Liveness + database ping

SECURITY NOTE:
  No authentication middleware. The front end passes the LINE user id.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultOrigins are allowed when no CORS origins are configured.
var DefaultOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Booking routes
		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", h.ListBookings)
			r.Post("/", h.CreateBooking)
			r.Put("/", h.UpdateBooking)
			r.Delete("/", h.DeleteBooking)
			r.Post("/validate", h.ValidateBooking)
		})

		// History routes
		r.Get("/history", h.ListHistory)
		r.Delete("/history", h.PurgeHistory)

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/", h.GetReport)
			r.Get("/pdf", h.GetReportPDF)
		})

		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Post("/", h.RegisterUser)
			r.Put("/", h.UpdateUser)
		})

		// Scenario routes
		if h.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	return r
}
