package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Auth.ServiceSecret) < 32 {
		errs = append(errs, "AUTH_SERVICE_SECRET must be at least 32 characters")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}
	if c.DB.Enabled {
		if c.DB.Port < 1 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
		}
		if c.DB.Password == "" {
			errs = append(errs, "DB_PASSWORD is required when DB_ENABLED is true")
		}
	}

	if c.Quota.FreeDailyLimit < 1 {
		errs = append(errs, fmt.Sprintf("QUOTA_FREE_DAILY_LIMIT must be positive, got %d", c.Quota.FreeDailyLimit))
	}
	if c.Quota.BonusDailyCap < 0 {
		errs = append(errs, fmt.Sprintf("QUOTA_BONUS_DAILY_CAP must not be negative, got %d", c.Quota.BonusDailyCap))
	}
	if c.Quota.WindowTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("QUOTA_WINDOW_TTL must be at least 1m, got %s", c.Quota.WindowTTL))
	}
	if c.Quota.StoreTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("QUOTA_STORE_TIMEOUT must be positive, got %s", c.Quota.StoreTimeout))
	}
	if c.RateLimit.PerMinute < 1 {
		errs = append(errs, fmt.Sprintf("RATELIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.PerMinute))
	}
	if c.RateLimit.PerHour < 1 {
		errs = append(errs, fmt.Sprintf("RATELIMIT_PER_HOUR must be positive, got %d", c.RateLimit.PerHour))
	}

	if c.Quota.StoreTimeout > time.Second {
		slog.Warn("QUOTA_STORE_TIMEOUT above 1s — chat requests block on Redis for that long during outages",
			"timeout", c.Quota.StoreTimeout)
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
