package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/epochish/klarita/internal/database"
	mw "github.com/epochish/klarita/internal/middleware"
	inats "github.com/epochish/klarita/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// User handlers
	Me                http.HandlerFunc
	GetPreferences    http.HandlerFunc
	UpdatePreferences http.HandlerFunc

	// Breakdown handlers
	CreateBreakdown            http.HandlerFunc
	ListBreakdowns             http.HandlerFunc
	GetBreakdown               http.HandlerFunc
	SubmitFeedback             http.HandlerFunc
	ReorderTasks               http.HandlerFunc
	MergeTasks                 http.HandlerFunc
	SessionOwnershipMiddleware func(http.Handler) http.Handler

	// Task handlers
	UpdateTask   http.HandlerFunc
	CompleteTask http.HandlerFunc

	// Gamification handlers
	GetGamificationProfile http.HandlerFunc

	// Analytics handlers
	GetAnalyticsSummary http.HandlerFunc

	// Memory handlers
	ListMemories http.HandlerFunc

	// Activity handlers
	ListActivity http.HandlerFunc

	// Coach handlers
	CoachStuck http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
	// BreakdownRateLimiter guards the generation endpoints — every request
	// behind it costs a provider call.
	BreakdownRateLimiter func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public) — optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Get("/users/me", h.Me)

			r.Route("/preferences", func(r chi.Router) {
				r.Get("/", h.GetPreferences)
				r.Put("/", h.UpdatePreferences)
			})

			// Breakdown routes
			r.Route("/breakdowns", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					if cfg.BreakdownRateLimiter != nil {
						r.Use(cfg.BreakdownRateLimiter)
					}
					r.Post("/", h.CreateBreakdown)
				})
				r.Get("/", h.ListBreakdowns)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Use(h.SessionOwnershipMiddleware)
					r.Get("/", h.GetBreakdown)
					r.Post("/feedback", h.SubmitFeedback)
					r.Put("/tasks/order", h.ReorderTasks)
					r.Post("/tasks/merge", h.MergeTasks)
				})
			})

			// Task routes (ownership checked against the parent session)
			r.Route("/tasks/{taskID}", func(r chi.Router) {
				r.Patch("/", h.UpdateTask)
				r.Post("/complete", h.CompleteTask)
			})

			r.Get("/gamification/profile", h.GetGamificationProfile)
			r.Get("/analytics/summary", h.GetAnalyticsSummary)
			r.Get("/memories", h.ListMemories)
			r.Get("/activity", h.ListActivity)

			r.Group(func(r chi.Router) {
				if cfg.BreakdownRateLimiter != nil {
					r.Use(cfg.BreakdownRateLimiter)
				}
				r.Post("/coach/stuck", h.CoachStuck)
			})
		})
	})

	return r
}
