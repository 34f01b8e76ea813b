package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	DB        DBConfig
	NATS      NATSConfig
	Auth      AuthConfig
	Billing   BillingConfig
	Quota     QuotaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DBConfig configures the optional PostgreSQL connection used for the
// violation audit trail. When Enabled is false the service runs without it.
type DBConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// NATSConfig configures event publication. An empty URL disables it.
type NATSConfig struct {
	URL string
}

type AuthConfig struct {
	ServiceSecret string
}

// BillingConfig points at the subscription service that owns tier data.
// An empty BaseURL switches the oracle to the static default-tier resolver.
type BillingConfig struct {
	BaseURL string
	Timeout time.Duration
}

type QuotaConfig struct {
	FreeDailyLimit int
	BonusDailyCap  int
	// WindowTTL is the lifetime of a quota record, anchored at first use.
	WindowTTL time.Duration
	// StoreTimeout bounds every Redis call made by the quota subsystem.
	StoreTimeout time.Duration
	// UnavailableRetryAfter is returned to callers when a consume is
	// denied because the store is unreachable.
	UnavailableRetryAfter time.Duration
}

type RateLimitConfig struct {
	PerMinute int
	PerHour   int
	// HTTPPerMinute limits requests to this service's own API per client
	// IP. Zero disables the middleware.
	HTTPPerMinute int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		DB: DBConfig{
			Enabled:  k.Bool("db.enabled"),
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Auth: AuthConfig{
			ServiceSecret: k.String("auth.service.secret"),
		},
		Billing: BillingConfig{
			BaseURL: k.String("billing.base.url"),
		},
		Quota: QuotaConfig{
			FreeDailyLimit: k.Int("quota.free.daily.limit"),
			BonusDailyCap:  k.Int("quota.bonus.daily.cap"),
		},
		RateLimit: RateLimitConfig{
			PerMinute:     k.Int("ratelimit.per.minute"),
			PerHour:       k.Int("ratelimit.per.hour"),
			HTTPPerMinute: k.Int("ratelimit.http.per.minute"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if origins := k.String("cors.allowed.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, o)
			}
		}
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "lingora"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "lingora"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.Quota.FreeDailyLimit == 0 {
		cfg.Quota.FreeDailyLimit = 5
	}
	if cfg.Quota.BonusDailyCap == 0 {
		cfg.Quota.BonusDailyCap = 5
	}
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = 60
	}
	if cfg.RateLimit.PerHour == 0 {
		cfg.RateLimit.PerHour = 1000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.Quota.WindowTTL, err = parseDuration(k, "quota.window.ttl", "24h")
	if err != nil {
		return nil, err
	}
	cfg.Quota.StoreTimeout, err = parseDuration(k, "quota.store.timeout", "250ms")
	if err != nil {
		return nil, err
	}
	cfg.Quota.UnavailableRetryAfter, err = parseDuration(k, "quota.unavailable.retry.after", "5s")
	if err != nil {
		return nil, err
	}
	cfg.Billing.Timeout, err = parseDuration(k, "billing.timeout", "2s")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
