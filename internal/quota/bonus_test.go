package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingora-app/lingora/internal/store"
)

func TestGrant_WithinCap(t *testing.T) {
	_, ledger, _ := setupManager(t)

	g, err := ledger.Grant(context.Background(), "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, g.BonusTotal)
	assert.Equal(t, 8, g.Remaining)
	assert.Greater(t, g.ResetIn, time.Duration(0))
}

func TestGrant_OverflowRejectedNotClamped(t *testing.T) {
	_, ledger, _ := setupManager(t)
	ctx := context.Background()

	g, err := ledger.Grant(ctx, "u1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, g.BonusTotal)

	// 4 + 2 > cap of 5: the whole grant is rejected, not trimmed to 1.
	g, err = ledger.Grant(ctx, "u1", 2)
	assert.ErrorIs(t, err, ErrBonusCapReached)
	assert.Equal(t, 4, g.BonusTotal)
	assert.Equal(t, 9, g.Remaining)
}

func TestGrant_ExactlyAtCap(t *testing.T) {
	_, ledger, _ := setupManager(t)
	ctx := context.Background()

	g, err := ledger.Grant(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, g.BonusTotal)

	_, err = ledger.Grant(ctx, "u1", 1)
	assert.ErrorIs(t, err, ErrBonusCapReached)
}

func TestGrant_InvalidAmount(t *testing.T) {
	_, ledger, _ := setupManager(t)

	_, err := ledger.Grant(context.Background(), "u1", 0)
	assert.Error(t, err)
	_, err = ledger.Grant(context.Background(), "u1", -2)
	assert.Error(t, err)
}

func TestGrant_ConcurrentGrantsNeverExceedCap(t *testing.T) {
	m, ledger, _ := setupManager(t)
	ctx := context.Background()

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Grant(ctx, "u1", 1); err == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), granted.Load())

	// Allowance reflects exactly the capped bonus.
	st, err := m.GetRemaining(ctx, "u1", TierFree)
	require.NoError(t, err)
	assert.Equal(t, 10, st.Remaining)
}

func TestGrant_ExpiresWithQuotaWindow(t *testing.T) {
	m, ledger, mr := setupManager(t)
	ctx := context.Background()

	// First message anchors the window; a grant 10h later must expire
	// with it, not 24h after the grant.
	_, err := m.TryConsume(ctx, "u1", TierFree)
	require.NoError(t, err)

	mr.FastForward(10 * time.Hour)

	g, err := ledger.Grant(ctx, "u1", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, g.ResetIn, 14*time.Hour)

	mr.FastForward(15 * time.Hour)

	st, err := m.GetRemaining(ctx, "u1", TierFree)
	require.NoError(t, err)
	assert.Equal(t, 5, st.Remaining)
}

func TestGrant_StoreUnavailable(t *testing.T) {
	_, ledger, mr := setupManager(t)
	mr.Close()

	_, err := ledger.Grant(context.Background(), "u1", 1)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

// Full lifecycle from the product scenario: free allowance 5, bonus cap 5.
func TestQuotaLifecycle_AdBonusScenario(t *testing.T) {
	m, ledger, _ := setupManager(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := m.TryConsume(ctx, "u1", TierFree)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	_, err := m.TryConsume(ctx, "u1", TierFree)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	g, err := ledger.Grant(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, g.BonusTotal)
	assert.Equal(t, 5, g.Remaining)

	for want := 4; want >= 0; want-- {
		d, err := m.TryConsume(ctx, "u1", TierFree)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, want, d.Remaining)
	}

	_, err = m.TryConsume(ctx, "u1", TierFree)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	g, err = ledger.Grant(ctx, "u1", 1)
	assert.ErrorIs(t, err, ErrBonusCapReached)
	assert.Equal(t, 5, g.BonusTotal)
}
