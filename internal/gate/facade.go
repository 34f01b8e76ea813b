// Package gate is the single entry point for usage governance: it composes
// the request rate limiter and the daily quota manager and owns the policy
// for store outages — fail open for reads, fail closed for consumption.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lingora-app/lingora/internal/audit"
	"github.com/lingora-app/lingora/internal/billing"
	"github.com/lingora-app/lingora/internal/config"
	"github.com/lingora-app/lingora/internal/events"
	"github.com/lingora-app/lingora/internal/metrics"
	"github.com/lingora-app/lingora/internal/quota"
	"github.com/lingora-app/lingora/internal/ratelimit"
	"github.com/lingora-app/lingora/internal/store"
)

// ErrInvalidIdentity reports a missing or malformed user/route identity.
// Fatal to the single request, never retried.
var ErrInvalidIdentity = errors.New("missing or malformed identity")

// ErrStoreUnavailable mirrors store.ErrUnavailable at the facade boundary
// so HTTP handlers map it to 503 without importing the store package.
var ErrStoreUnavailable = store.ErrUnavailable

// Facade is the API surface consumed by the HTTP layer.
type Facade struct {
	manager *quota.Manager
	ledger  *quota.BonusLedger
	limiter *ratelimit.Limiter
	oracle  billing.SubscriptionOracle
	pub     *events.Publisher
	audit   *audit.Repository
	cfg     config.QuotaConfig
}

func NewFacade(
	manager *quota.Manager,
	ledger *quota.BonusLedger,
	limiter *ratelimit.Limiter,
	oracle billing.SubscriptionOracle,
	pub *events.Publisher,
	auditRepo *audit.Repository,
	cfg config.QuotaConfig,
) *Facade {
	return &Facade{
		manager: manager,
		ledger:  ledger,
		limiter: limiter,
		oracle:  oracle,
		pub:     pub,
		audit:   auditRepo,
		cfg:     cfg,
	}
}

// Remaining reports the user's current allowance. Reads fail open: on a
// store outage the user sees their full nominal allowance instead of a
// blocked UI.
func (f *Facade) Remaining(ctx context.Context, userID string) (quota.Status, error) {
	if err := validIdentity(userID); err != nil {
		return quota.Status{}, err
	}

	tier := f.tier(ctx, userID)
	st, err := f.manager.GetRemaining(ctx, userID, tier)
	if errors.Is(err, store.ErrUnavailable) {
		slog.Warn("gate: store unavailable on read, reporting full allowance", "user_id", userID, "error", err)
		return quota.Status{Remaining: f.manager.ResolveLimit(tier)}, nil
	}
	if err != nil {
		return quota.Status{}, err
	}
	return st, nil
}

// Consume spends one message of the user's daily allowance. Writes fail
// closed: if the store cannot be reached the request is denied with a
// short retry-after rather than risking unbounded oversell.
func (f *Facade) Consume(ctx context.Context, userID string) (quota.Decision, error) {
	if err := validIdentity(userID); err != nil {
		return quota.Decision{}, err
	}

	tier := f.tier(ctx, userID)
	d, err := f.manager.TryConsume(ctx, userID, tier)

	switch {
	case err == nil:
		metrics.QuotaDecisionsTotal.WithLabelValues("allowed").Inc()
		return d, nil

	case errors.Is(err, quota.ErrQuotaExceeded):
		metrics.QuotaDecisionsTotal.WithLabelValues("denied").Inc()
		d.RetryAfter = d.ResetIn
		f.recordViolation(ctx, userID, audit.ViolationQuotaExceeded, "")
		if pubErr := f.pub.PublishQuotaExceeded(ctx, events.QuotaExceededEvent{
			UserID:    userID,
			Tier:      string(tier),
			ResetIn:   int64(d.ResetIn.Seconds()),
			Timestamp: time.Now().UTC(),
		}); pubErr != nil {
			slog.Warn("gate: publishing quota event failed", "error", pubErr)
		}
		return d, err

	case errors.Is(err, store.ErrUnavailable):
		metrics.QuotaDecisionsTotal.WithLabelValues("unavailable").Inc()
		slog.Warn("gate: store unavailable on consume, denying", "user_id", userID, "error", err)
		return quota.Decision{
			Allowed:    false,
			RetryAfter: f.cfg.UnavailableRetryAfter,
		}, err

	default:
		return quota.Decision{}, err
	}
}

// GrantBonus credits a rewarded-ad bonus. Store failures propagate: a
// half-applied grant must never be reported as success.
func (f *Facade) GrantBonus(ctx context.Context, userID string, amount int) (quota.BonusGrant, error) {
	if err := validIdentity(userID); err != nil {
		return quota.BonusGrant{}, err
	}

	g, err := f.ledger.Grant(ctx, userID, amount)

	switch {
	case err == nil:
		metrics.BonusGrantsTotal.WithLabelValues("granted").Inc()
		if pubErr := f.pub.PublishBonusGranted(ctx, events.BonusGrantedEvent{
			UserID:     userID,
			Amount:     amount,
			BonusTotal: g.BonusTotal,
			Timestamp:  time.Now().UTC(),
		}); pubErr != nil {
			slog.Warn("gate: publishing bonus event failed", "error", pubErr)
		}
		return g, nil

	case errors.Is(err, quota.ErrBonusCapReached):
		metrics.BonusGrantsTotal.WithLabelValues("cap_reached").Inc()
		f.recordViolation(ctx, userID, audit.ViolationBonusCap, "")
		return g, err

	default:
		metrics.BonusGrantsTotal.WithLabelValues("error").Inc()
		return quota.BonusGrant{}, err
	}
}

// RateCheck runs the abuse windows for (identity, route). It fails open:
// coarse protection is not worth blocking all traffic during a store
// outage, and the daily quota still fails closed behind it.
func (f *Facade) RateCheck(ctx context.Context, identity, route string) (ratelimit.Result, error) {
	if err := validIdentity(identity); err != nil {
		return ratelimit.Result{}, err
	}
	if err := validIdentity(route); err != nil {
		return ratelimit.Result{}, fmt.Errorf("route: %w", ErrInvalidIdentity)
	}

	res, err := f.limiter.Check(ctx, identity, route)
	if errors.Is(err, store.ErrUnavailable) {
		metrics.RateLimitChecksTotal.WithLabelValues("unavailable").Inc()
		slog.Warn("gate: store unavailable on rate check, allowing", "identity", identity, "error", err)
		return ratelimit.Result{Allowed: true}, nil
	}
	if err != nil {
		return ratelimit.Result{}, err
	}

	if res.Allowed {
		metrics.RateLimitChecksTotal.WithLabelValues("allowed").Inc()
	} else {
		metrics.RateLimitChecksTotal.WithLabelValues("denied").Inc()
		f.recordViolation(ctx, identity, audit.ViolationRateLimit, route)
		if pubErr := f.pub.PublishRateLimitTripped(ctx, events.RateLimitTrippedEvent{
			Identity:   identity,
			Route:      route,
			RetryAfter: int64(res.RetryAfter.Seconds()),
			Timestamp:  time.Now().UTC(),
		}); pubErr != nil {
			slog.Warn("gate: publishing rate-limit event failed", "error", pubErr)
		}
	}
	return res, nil
}

// Violations lists the user's recent quota/rate-limit violations.
func (f *Facade) Violations(ctx context.Context, userID string, limit int) ([]audit.Violation, error) {
	if err := validIdentity(userID); err != nil {
		return nil, err
	}
	return f.audit.ListByUser(ctx, userID, limit)
}

func (f *Facade) tier(ctx context.Context, userID string) quota.Tier {
	tier, err := f.oracle.GetTier(ctx, userID)
	if err != nil {
		// A billing outage must not hand out unlimited quota.
		slog.Warn("gate: tier lookup failed, assuming free", "user_id", userID, "error", err)
		return quota.TierFree
	}
	return tier
}

func (f *Facade) recordViolation(ctx context.Context, userID, kind, route string) {
	if err := f.audit.Record(ctx, userID, kind, route); err != nil {
		slog.Warn("gate: recording violation failed", "user_id", userID, "kind", kind, "error", err)
	}
}

func validIdentity(id string) error {
	if id == "" || len(id) > 128 {
		return ErrInvalidIdentity
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= 0x20 || id[i] == 0x7f {
			return ErrInvalidIdentity
		}
	}
	return nil
}
