package audit

import (
	"time"

	"github.com/google/uuid"
)

// Violation kinds recorded against a user.
const (
	ViolationQuotaExceeded = "quota_exceeded"
	ViolationBonusCap      = "bonus_cap_reached"
	ViolationRateLimit     = "rate_limit"
)

// Violation matches the quota_violations table schema.
type Violation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Route     string    `json:"route,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
