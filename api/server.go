/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack, and the route
  definitions. This is the wiring layer that connects URLs to handlers;
  role gates live here so handlers can assume an authenticated actor.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. zap logger: Structured request logging
  4. CORS:       Cross-origin requests for a local frontend

ROUTE GROUPS:
  /api/auth/*       Public: credential exchange
  /api/workers/*    Accountant (workers: own record, change requests)
  /api/requests/*   Accountant: workflow resolution
  /api/reports/*    Accountant: payroll report
  /api/audit        Accountant: financial audit trail

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go:     Token parsing and RequireRole
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/accountant", h.AuthenticateAccountant)
			r.Post("/worker", h.AuthenticateWorker)
		})

		r.Route("/workers", func(r chi.Router) {
			r.With(h.RequireRole(RoleAccountant)).Get("/", h.ListWorkers)
			r.With(h.RequireRole(RoleAccountant)).Post("/", h.CreateWorker)
			r.With(h.RequireRole(RoleAccountant, RoleWorker)).Get("/{id}", h.GetWorker)
			r.With(h.RequireRole(RoleAccountant)).Patch("/{id}", h.UpdateWorkerField)
			r.With(h.RequireRole(RoleWorker)).Post("/{id}/change-requests", h.SubmitChangeRequest)
			r.With(h.RequireRole(RoleAccountant)).Post("/{id}/sick-leaves", h.AddSickLeave)
			r.With(h.RequireRole(RoleAccountant)).Post("/{id}/allowances", h.AddAllowance)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Use(h.RequireRole(RoleAccountant))
			r.Get("/pending", h.ListPendingRequests)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
		})

		r.With(h.RequireRole(RoleAccountant)).Get("/reports/payroll", h.PayrollReport)
		r.With(h.RequireRole(RoleAccountant)).Get("/audit", h.AuditTrail)
	})

	return r
}

// requestLogger logs one line per request with latency and status.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
