package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lingora-app/lingora/internal/api"
	"github.com/lingora-app/lingora/internal/audit"
	"github.com/lingora-app/lingora/internal/auth"
	"github.com/lingora-app/lingora/internal/billing"
	"github.com/lingora-app/lingora/internal/config"
	"github.com/lingora-app/lingora/internal/database"
	"github.com/lingora-app/lingora/internal/events"
	"github.com/lingora-app/lingora/internal/gate"
	mw "github.com/lingora-app/lingora/internal/middleware"
	"github.com/lingora-app/lingora/internal/quota"
	"github.com/lingora-app/lingora/internal/ratelimit"
	iredis "github.com/lingora-app/lingora/internal/redis"
	"github.com/lingora-app/lingora/internal/server"
	"github.com/lingora-app/lingora/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("validating config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Redis — the shared counter store everything depends on
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// PostgreSQL — optional violation audit trail
	var pool *pgxpool.Pool
	var auditRepo *audit.Repository
	if cfg.DB.Enabled {
		pool, err = database.NewPostgresPool(ctx, cfg.DB)
		if err != nil {
			slog.Error("connecting to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
		auditRepo = audit.NewRepository(pool)
	} else {
		slog.Info("database disabled, violations will not be recorded")
	}

	// NATS — optional event publication
	var natsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		natsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = events.NewPublisher(natsClient.JetStream())
	} else {
		slog.Info("NATS disabled, governance events will not be published")
	}

	// Tier oracle
	var oracle billing.SubscriptionOracle
	if cfg.Billing.BaseURL != "" {
		oracle = billing.NewHTTPOracle(cfg.Billing.BaseURL, cfg.Billing.Timeout)
	} else {
		slog.Warn("billing service not configured, all users treated as free tier")
		oracle = &billing.StaticOracle{Default: quota.TierFree}
	}

	// Governance core
	st := store.NewRedisStore(redisClient, cfg.Quota.StoreTimeout)
	manager := quota.NewManager(st, cfg.Quota)
	ledger := quota.NewBonusLedger(st, cfg.Quota)
	limiter := ratelimit.NewLimiter(st,
		ratelimit.Window{Size: time.Minute, Limit: cfg.RateLimit.PerMinute},
		ratelimit.Window{Size: time.Hour, Limit: cfg.RateLimit.PerHour},
	)

	facade := gate.NewFacade(manager, ledger, limiter, oracle, publisher, auditRepo, cfg.Quota)
	handler := gate.NewHandler(facade)

	// Router
	routerCfg := api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
	}
	if cfg.RateLimit.HTTPPerMinute > 0 {
		ipLimiter := ratelimit.NewLimiter(st,
			ratelimit.Window{Size: time.Minute, Limit: cfg.RateLimit.HTTPPerMinute},
		)
		routerCfg.IPRateLimiter = mw.RateLimit(ipLimiter, "api")
	}

	router := api.NewRouter(redisClient, pool, natsClient, routerCfg, api.HandlerSet{
		GetQuota:       handler.GetQuota,
		Consume:        handler.Consume,
		GrantBonus:     handler.GrantBonus,
		RateCheck:      handler.RateCheck,
		ListViolations: handler.ListViolations,

		AuthMiddleware: auth.ServiceAuth(cfg.Auth.ServiceSecret),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
