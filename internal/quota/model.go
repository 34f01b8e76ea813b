package quota

import (
	"errors"
	"time"
)

// Tier is the subscription class resolved by the billing service.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Unlimited is the sentinel allowance for premium users.
const Unlimited = -1

var (
	// ErrQuotaExceeded is the normal business rejection: the user spent
	// today's allowance. Callers surface it as "come back later or
	// watch an ad", not as a failure.
	ErrQuotaExceeded = errors.New("daily message quota exceeded")

	// ErrBonusCapReached reports a rejected bonus grant. The grant is
	// never silently clamped; the caller decides whether to keep
	// offering ads.
	ErrBonusCapReached = errors.New("daily bonus cap reached")
)

// Decision is the outcome of a consume attempt.
type Decision struct {
	Allowed   bool          `json:"allowed"`
	Remaining int           `json:"remaining"`
	Unlimited bool          `json:"unlimited"`
	ResetIn   time.Duration `json:"-"`
	// RetryAfter is advisory for denied decisions: window reset for a
	// spent quota, a short back-off when the store is unreachable.
	RetryAfter time.Duration `json:"-"`
}

// Status is the read-only quota view for status checks.
type Status struct {
	Remaining int           `json:"remaining"`
	Unlimited bool          `json:"unlimited"`
	ResetIn   time.Duration `json:"-"`
}

// BonusGrant is the outcome of a rewarded-ad bonus grant.
type BonusGrant struct {
	BonusTotal int           `json:"bonus_total"`
	Remaining  int           `json:"remaining"`
	ResetIn    time.Duration `json:"-"`
}
