package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/criahub/entitlement-engine/app"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Gate: evaluation runs inside the enforcement middleware, the
		// handler only reports the admitted decision.
		r.Route("/gate", func(r chi.Router) {
			r.With(deps.GateMiddleware.EnforceEntitlement).
				Post("/evaluate", deps.GateHandler.HandleEvaluate)
			r.Post("/complete", deps.GateHandler.HandleComplete)
		})

		// Pricing quotes
		r.Post("/pricing/quote", deps.PricingHandler.HandleQuote)

		// Payment processor callbacks
		r.Post("/webhooks/payments", deps.WebhookHandler.HandlePaymentEvent)

		// Live metrics (require admin token)
		r.Route("/metrics", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAdmin)
			r.Get("/snapshot", deps.MetricsHandler.HandleSnapshot)
			r.Get("/alerts", deps.MetricsHandler.HandleAlerts)
		})

		// Operator views per user (require admin token)
		r.Route("/users", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAdmin)
			r.Get("/{userID}/risk", deps.RiskHandler.HandleAssessment)
			r.Get("/{userID}/audit", deps.RiskHandler.HandleAuditTrail)
		})

		// Manual enforcement contract (require admin token)
		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAdmin)
			r.Get("/audit", deps.RiskHandler.HandleRecentAudit)
			r.Post("/users/{userID}/block", deps.AdminHandler.HandleBlock)
			r.Post("/users/{userID}/unblock", deps.AdminHandler.HandleUnblock)
			r.Post("/users/{userID}/plan", deps.AdminHandler.HandleChangePlan)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
