package quota

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lingora-app/lingora/internal/config"
	"github.com/lingora-app/lingora/internal/store"
)

const (
	consumedKeyPrefix = "quota:consumed:"
	bonusKeyPrefix    = "quota:bonus:"
)

// Manager answers "may this user send one more message today". The daily
// window is a rolling 24h anchored at the user's first message: the first
// access creates the record with SetIfAbsent so the TTL is fixed relative
// to first use, and expiry resets consumption and bonus together with no
// cleanup job.
//
// Concurrency: consumption is increment-then-check with rollback on
// overflow. Two callers racing for the last slot both increment, see
// distinct post-increment values, and at most one of them is within the
// allowance — a check-then-increment read would let both through.
type Manager struct {
	store store.Store
	cfg   config.QuotaConfig
}

func NewManager(st store.Store, cfg config.QuotaConfig) *Manager {
	return &Manager{store: st, cfg: cfg}
}

// ResolveLimit maps a tier to its base daily allowance. Pure, no I/O.
func (m *Manager) ResolveLimit(tier Tier) int {
	if tier == TierPremium {
		return Unlimited
	}
	return m.cfg.FreeDailyLimit
}

// TryConsume spends one unit of the user's daily allowance. Premium users
// are always allowed and never touch the store. Denial is reported as
// ErrQuotaExceeded with the Decision still describing remaining/reset;
// store failures pass through as store.ErrUnavailable for the caller's
// fail-closed policy.
func (m *Manager) TryConsume(ctx context.Context, userID string, tier Tier) (Decision, error) {
	if tier == TierPremium {
		return Decision{Allowed: true, Remaining: Unlimited, Unlimited: true}, nil
	}

	key := consumedKey(userID)

	// Anchor the window at first use so the TTL counts from the user's
	// first message, not a global clock tick.
	if _, err := m.store.SetIfAbsent(ctx, key, 0, m.cfg.WindowTTL); err != nil {
		return Decision{}, fmt.Errorf("establishing quota window: %w", err)
	}

	bonus, err := m.currentBonus(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	allowance := int64(m.cfg.FreeDailyLimit + bonus)

	consumed, err := m.store.IncrBy(ctx, key, 1, m.cfg.WindowTTL)
	if err != nil {
		return Decision{}, fmt.Errorf("consuming quota: %w", err)
	}

	resetIn, ttlErr := m.store.TTL(ctx, key)
	if ttlErr != nil {
		slog.Warn("quota: reading window ttl failed", "user_id", userID, "error", ttlErr)
	}

	if consumed > allowance {
		// Overflow: undo our increment so the slot is not burned. A
		// failed rollback can only under-sell, never over-sell.
		if _, rbErr := m.store.IncrBy(ctx, key, -1, m.cfg.WindowTTL); rbErr != nil {
			slog.Warn("quota: rolling back over-limit consume failed", "user_id", userID, "error", rbErr)
		}
		return Decision{Allowed: false, Remaining: 0, ResetIn: resetIn}, ErrQuotaExceeded
	}

	return Decision{
		Allowed:   true,
		Remaining: int(allowance - consumed),
		ResetIn:   resetIn,
	}, nil
}

// GetRemaining is the read-only variant: it never creates a record, so pure
// status checks cost no writes. A user with no record today has the full
// base allowance ahead of them.
func (m *Manager) GetRemaining(ctx context.Context, userID string, tier Tier) (Status, error) {
	if tier == TierPremium {
		return Status{Remaining: Unlimited, Unlimited: true}, nil
	}

	key := consumedKey(userID)

	consumed, found, err := m.store.Get(ctx, key)
	if err != nil {
		return Status{}, fmt.Errorf("reading quota: %w", err)
	}
	if !found {
		return Status{Remaining: m.cfg.FreeDailyLimit}, nil
	}

	bonus, err := m.currentBonus(ctx, userID)
	if err != nil {
		return Status{}, err
	}

	resetIn, err := m.store.TTL(ctx, key)
	if err != nil {
		return Status{}, fmt.Errorf("reading quota ttl: %w", err)
	}

	remaining := m.cfg.FreeDailyLimit + bonus - int(consumed)
	if remaining < 0 {
		remaining = 0
	}
	return Status{Remaining: remaining, ResetIn: resetIn}, nil
}

// Reset wipes the user's quota records. Administrative use and tests only.
func (m *Manager) Reset(ctx context.Context, userID string) error {
	if err := m.store.Del(ctx, consumedKey(userID)); err != nil {
		return fmt.Errorf("resetting consumed counter: %w", err)
	}
	if err := m.store.Del(ctx, bonusKey(userID)); err != nil {
		return fmt.Errorf("resetting bonus counter: %w", err)
	}
	return nil
}

// currentBonus reads the granted bonus, clamped to the daily cap. The clamp
// matters: a rejected in-flight grant is visible above the cap until its
// rollback lands, and an unclamped read would briefly inflate the allowance.
func (m *Manager) currentBonus(ctx context.Context, userID string) (int, error) {
	bonus, _, err := m.store.Get(ctx, bonusKey(userID))
	if err != nil {
		return 0, fmt.Errorf("reading bonus: %w", err)
	}
	if bonus > int64(m.cfg.BonusDailyCap) {
		bonus = int64(m.cfg.BonusDailyCap)
	}
	if bonus < 0 {
		bonus = 0
	}
	return int(bonus), nil
}

func consumedKey(userID string) string { return consumedKeyPrefix + userID }
func bonusKey(userID string) string    { return bonusKeyPrefix + userID }
