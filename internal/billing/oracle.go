// Package billing resolves a user's subscription tier. Tier data is owned
// by the billing service; this package only consumes its contract.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/lingora-app/lingora/internal/quota"
)

// SubscriptionOracle reports the tier a user is currently entitled to.
type SubscriptionOracle interface {
	GetTier(ctx context.Context, userID string) (quota.Tier, error)
}

// HTTPOracle asks the billing service over its internal REST API.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *HTTPOracle) GetTier(ctx context.Context, userID string) (quota.Tier, error) {
	u := fmt.Sprintf("%s/internal/v1/subscriptions/%s/tier", o.baseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building tier request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching tier: %w", err)
	}
	defer resp.Body.Close()

	// Unknown users are free-tier by definition.
	if resp.StatusCode == http.StatusNotFound {
		return quota.TierFree, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("billing service returned status %d", resp.StatusCode)
	}

	var body struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding tier response: %w", err)
	}

	switch quota.Tier(body.Tier) {
	case quota.TierFree, quota.TierPremium:
		return quota.Tier(body.Tier), nil
	default:
		slog.Warn("billing: unknown tier, treating as free", "tier", body.Tier, "user_id", userID)
		return quota.TierFree, nil
	}
}

// StaticOracle answers every lookup with a fixed tier, with optional
// per-user overrides. Used when no billing service is configured, and in
// tests.
type StaticOracle struct {
	Default   quota.Tier
	Overrides map[string]quota.Tier
}

func (o *StaticOracle) GetTier(_ context.Context, userID string) (quota.Tier, error) {
	if t, ok := o.Overrides[userID]; ok {
		return t, nil
	}
	if o.Default == "" {
		return quota.TierFree, nil
	}
	return o.Default, nil
}
