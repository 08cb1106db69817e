/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request for tracing
  2. RequestLogger:  Structured request logging (zerolog)
  3. Recoverer:      Panic recovery (500 instead of crash)
  4. CORS:           Cross-origin requests for frontend

AUTHENTICATION:
  Two route groups, two middleware levels:
  - /api/enroll/*: VerifyToken only. The caller has a valid token from
    the identity provider but no member record yet.
  - everything else under /api: Authenticate. The resolved Identity is
    the only caller information handlers ever see.

SEE ALSO:
  - middleware.go: The two authentication levels
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Authenticator, log zerolog.Logger, corsOrigins string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(corsOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Enrollment routes: token-verified, no member record required.
		r.Group(func(r chi.Router) {
			r.Use(auth.VerifyToken)
			r.Post("/enroll/admin", h.EnrollAdmin)
			r.Post("/enroll/redeem", h.Redeem)
		})

		// Everything else requires a resolved member.
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Route("/organization", func(r chi.Router) {
				r.Get("/", h.GetOrganization)
				r.Put("/profile", h.UpdateProfile)
				r.Put("/working-days", h.UpdateWorkingDays)
			})

			r.Route("/holidays", func(r chi.Router) {
				r.Get("/", h.ListHolidays)
				r.Post("/", h.CreateHoliday)
				r.Put("/{id}", h.UpdateHoliday)
				r.Delete("/{id}", h.DeleteHoliday)
			})

			r.Route("/members", func(r chi.Router) {
				r.Get("/", h.ListMembers)
				r.Get("/me", h.GetSelf)
				r.Put("/{id}/allowance", h.OverrideAllowance)
				r.Get("/{id}/ledger", h.GetLedger)
			})

			r.Route("/requests", func(r chi.Router) {
				r.Post("/", h.SubmitRequest)
				r.Get("/", h.ListOrgRequests)
				r.Get("/mine", h.ListOwnRequests)
				r.Get("/{id}", h.GetRequest)
				r.Post("/{id}/approve", h.ApproveRequest)
				r.Post("/{id}/reject", h.RejectRequest)
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Post("/", h.IssueCode)
				r.Get("/", h.ListCodes)
			})
		})
	})

	return r
}
