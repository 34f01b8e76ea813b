package quota

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lingora-app/lingora/internal/config"
	"github.com/lingora-app/lingora/internal/store"
)

// BonusLedger grants capped extra allowance after a rewarded-ad view. Grants
// use the same increment-then-rollback pattern as consumption, so concurrent
// grants can never durably push the bonus past the daily cap.
type BonusLedger struct {
	store store.Store
	cfg   config.QuotaConfig
}

func NewBonusLedger(st store.Store, cfg config.QuotaConfig) *BonusLedger {
	return &BonusLedger{store: st, cfg: cfg}
}

// Grant adds amount to the user's bonus if the cap allows the whole grant.
// A grant that would overflow is rejected with ErrBonusCapReached and the
// current total unchanged — never partially applied.
func (l *BonusLedger) Grant(ctx context.Context, userID string, amount int) (BonusGrant, error) {
	if amount <= 0 {
		return BonusGrant{}, fmt.Errorf("bonus amount must be positive, got %d", amount)
	}

	// A grant before the user's first message of the day anchors the
	// window, so the bonus expires with the rest of the record.
	cKey := consumedKey(userID)
	if _, err := l.store.SetIfAbsent(ctx, cKey, 0, l.cfg.WindowTTL); err != nil {
		return BonusGrant{}, fmt.Errorf("establishing quota window: %w", err)
	}

	windowLeft, err := l.store.TTL(ctx, cKey)
	if err != nil {
		return BonusGrant{}, fmt.Errorf("reading window ttl: %w", err)
	}
	if windowLeft <= 0 {
		// The window expired between the SetIfAbsent and the TTL read.
		windowLeft = l.cfg.WindowTTL
	}

	total, err := l.store.IncrBy(ctx, bonusKey(userID), int64(amount), windowLeft)
	if err != nil {
		return BonusGrant{}, fmt.Errorf("granting bonus: %w", err)
	}

	if total > int64(l.cfg.BonusDailyCap) {
		if _, rbErr := l.store.IncrBy(ctx, bonusKey(userID), int64(-amount), windowLeft); rbErr != nil {
			slog.Warn("bonus: rolling back over-cap grant failed", "user_id", userID, "error", rbErr)
		}
		grant := BonusGrant{BonusTotal: int(total) - amount, ResetIn: windowLeft}
		grant.Remaining, err = l.remaining(ctx, userID, grant.BonusTotal)
		if err != nil {
			return BonusGrant{}, err
		}
		return grant, ErrBonusCapReached
	}

	grant := BonusGrant{BonusTotal: int(total), ResetIn: windowLeft}
	grant.Remaining, err = l.remaining(ctx, userID, grant.BonusTotal)
	if err != nil {
		return BonusGrant{}, err
	}
	return grant, nil
}

func (l *BonusLedger) remaining(ctx context.Context, userID string, bonus int) (int, error) {
	consumed, _, err := l.store.Get(ctx, consumedKey(userID))
	if err != nil {
		return 0, fmt.Errorf("reading consumed counter: %w", err)
	}
	if bonus > l.cfg.BonusDailyCap {
		bonus = l.cfg.BonusDailyCap
	}
	remaining := l.cfg.FreeDailyLimit + bonus - int(consumed)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
