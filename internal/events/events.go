package events

import "time"

// Stream and subject names.
const (
	StreamGovernance = "LINGORA_GOVERNANCE"

	SubjectQuotaExceeded    = "lingora.governance.quota.exceeded"
	SubjectBonusGranted     = "lingora.governance.bonus.granted"
	SubjectRateLimitTripped = "lingora.governance.ratelimit.tripped"
)

// QuotaExceededEvent is published when a consume attempt is denied.
type QuotaExceededEvent struct {
	UserID    string    `json:"user_id"`
	Tier      string    `json:"tier"`
	ResetIn   int64     `json:"reset_in_seconds"`
	Timestamp time.Time `json:"timestamp"`
}

// BonusGrantedEvent is published after a successful rewarded-ad grant.
type BonusGrantedEvent struct {
	UserID     string    `json:"user_id"`
	Amount     int       `json:"amount"`
	BonusTotal int       `json:"bonus_total"`
	Timestamp  time.Time `json:"timestamp"`
}

// RateLimitTrippedEvent is published when a rate window rejects traffic.
type RateLimitTrippedEvent struct {
	Identity   string    `json:"identity"`
	Route      string    `json:"route"`
	RetryAfter int64     `json:"retry_after_seconds"`
	Timestamp  time.Time `json:"timestamp"`
}
