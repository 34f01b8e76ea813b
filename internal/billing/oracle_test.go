package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingora-app/lingora/internal/quota"
)

func TestHTTPOracle_PremiumTier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/v1/subscriptions/u-42/tier", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tier":"premium"}`))
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL, 2*time.Second)
	tier, err := o.GetTier(context.Background(), "u-42")
	require.NoError(t, err)
	assert.Equal(t, quota.TierPremium, tier)
}

func TestHTTPOracle_UnknownUserIsFree(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL, 2*time.Second)
	tier, err := o.GetTier(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, quota.TierFree, tier)
}

func TestHTTPOracle_UnknownTierFallsBackToFree(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tier":"enterprise"}`))
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL, 2*time.Second)
	tier, err := o.GetTier(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, quota.TierFree, tier)
}

func TestHTTPOracle_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL, 2*time.Second)
	_, err := o.GetTier(context.Background(), "u-1")
	assert.Error(t, err)
}

func TestStaticOracle(t *testing.T) {
	o := &StaticOracle{
		Default:   quota.TierFree,
		Overrides: map[string]quota.Tier{"vip": quota.TierPremium},
	}

	tier, err := o.GetTier(context.Background(), "anyone")
	require.NoError(t, err)
	assert.Equal(t, quota.TierFree, tier)

	tier, err = o.GetTier(context.Background(), "vip")
	require.NoError(t, err)
	assert.Equal(t, quota.TierPremium, tier)
}
