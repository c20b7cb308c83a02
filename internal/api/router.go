package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cupid-copilot/backend/internal/database"
	mw "github.com/cupid-copilot/backend/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Analysis
	AnalyzeFrame http.HandlerFunc

	// Push tokens
	RegisterToken http.HandlerFunc
	ListTokens    http.HandlerFunc

	// Notifications
	SendNotification    http.HandlerFunc
	DeviceNotifications http.HandlerFunc

	// Debug
	ListConversations http.HandlerFunc
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	FrameRateLimiter   func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, rdb *redis.Client, cfg RouterConfig, h HandlerSet) http.Handler {
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

	// Readiness probe — checks Redis and Postgres
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"redis":    "healthy",
			"database": "healthy",
		}

		status := http.StatusOK

		if err := rdb.Ping(r.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Frame analysis — optionally rate-limited per IP
		r.Group(func(r chi.Router) {
			if cfg.FrameRateLimiter != nil {
				r.Use(cfg.FrameRateLimiter)
			}
			r.Post("/frames", h.AnalyzeFrame)
		})

		r.Route("/push-tokens", func(r chi.Router) {
			r.Post("/", h.RegisterToken)
			r.Get("/", h.ListTokens)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.DeviceNotifications)
			r.Post("/send", h.SendNotification)
		})

		r.Get("/debug/conversations", h.ListConversations)
	})

	return r
}
