package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lingora-app/lingora/internal/database"
	"github.com/lingora-app/lingora/internal/events"
	mw "github.com/lingora-app/lingora/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import
// cycles.
type HandlerSet struct {
	GetQuota       http.HandlerFunc
	Consume        http.HandlerFunc
	GrantBonus     http.HandlerFunc
	RateCheck      http.HandlerFunc
	ListViolations http.HandlerFunc

	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	// IPRateLimiter optionally throttles this API itself per client IP.
	IPRateLimiter func(http.Handler) http.Handler
}

func NewRouter(redisClient *redis.Client, pool *pgxpool.Pool, natsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
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

	// Readiness probe — Redis is load-bearing, Postgres and NATS are not
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"redis":    "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if pool != nil {
			if err := database.HealthCheck(r.Context(), pool); err != nil {
				health["database"] = "unhealthy"
				health["status"] = "degraded"
			}
		} else {
			health["database"] = "not configured"
		}

		if natsClient != nil {
			if !natsClient.Healthy() {
				health["nats"] = "unhealthy"
				health["status"] = "degraded"
			}
		} else {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1 — internal service-to-service surface
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.IPRateLimiter != nil {
			r.Use(cfg.IPRateLimiter)
		}
		if h.AuthMiddleware != nil {
			r.Use(h.AuthMiddleware)
		}

		r.Route("/quota/{userID}", func(r chi.Router) {
			r.Get("/", h.GetQuota)
			r.Post("/consume", h.Consume)
			r.Post("/bonus", h.GrantBonus)
			r.Get("/violations", h.ListViolations)
		})

		r.Post("/ratelimit/check", h.RateCheck)
	})

	return r
}
