package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/cache"
	"github.com/saiset-co/sai-commerce/logger"
)

func newTestLimiter(store *cache.MemoryStore) *Limiter {
	return NewLimiter(store, logger.NewZapWrapper(zap.NewNop()), nil, 0)
}

func TestAllowEnforcesAuthPolicy(t *testing.T) {
	store := cache.NewMemoryStore()
	limiter := newTestLimiter(store)
	ctx := context.Background()

	for i := int64(1); i <= PolicyAuth.Max; i++ {
		decision := limiter.Allow(ctx, PolicyAuth, "1.2.3.4")
		require.True(t, decision.Allowed, "attempt %d should pass", i)
		assert.False(t, decision.Fallback)
		assert.Equal(t, PolicyAuth.Max-i, decision.Remaining)
	}

	decision := limiter.Allow(ctx, PolicyAuth, "1.2.3.4")
	assert.False(t, decision.Allowed)
	assert.Equal(t, int64(0), decision.Remaining)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))

	// Another client is counted independently.
	decision = limiter.Allow(ctx, PolicyAuth, "5.6.7.8")
	assert.True(t, decision.Allowed)
}

func TestPoliciesAreIndependent(t *testing.T) {
	store := cache.NewMemoryStore()
	limiter := newTestLimiter(store)
	ctx := context.Background()

	for i := int64(0); i < PolicyAuth.Max+1; i++ {
		limiter.Allow(ctx, PolicyAuth, "1.2.3.4")
	}

	decision := limiter.Allow(ctx, PolicyAPI, "1.2.3.4")
	assert.True(t, decision.Allowed, "auth exhaustion must not affect the api policy")
}

func TestWindowResets(t *testing.T) {
	store := cache.NewMemoryStore()
	limiter := newTestLimiter(store)
	ctx := context.Background()

	policy := Policy{Name: "test", Window: 50 * time.Millisecond, Max: 2}

	require.True(t, limiter.Allow(ctx, policy, "c").Allowed)
	require.True(t, limiter.Allow(ctx, policy, "c").Allowed)
	require.False(t, limiter.Allow(ctx, policy, "c").Allowed)

	time.Sleep(60 * time.Millisecond)

	decision := limiter.Allow(ctx, policy, "c")
	assert.True(t, decision.Allowed, "a new window restores the full budget")
	assert.Equal(t, policy.Max-1, decision.Remaining)
}

func TestRemaining(t *testing.T) {
	store := cache.NewMemoryStore()
	limiter := newTestLimiter(store)
	ctx := context.Background()

	assert.Equal(t, RemainingUnknown, limiter.Remaining(ctx, "1.2.3.4", PolicySearch),
		"no window entry means the full budget is available")

	limiter.Allow(ctx, PolicySearch, "1.2.3.4")
	limiter.Allow(ctx, PolicySearch, "1.2.3.4")

	assert.Equal(t, PolicySearch.Max-2, limiter.Remaining(ctx, "1.2.3.4", PolicySearch))
}

func TestFallbackDuringOutage(t *testing.T) {
	store := cache.NewMemoryStore()
	limiter := newTestLimiter(store)
	ctx := context.Background()

	limiter.Allow(ctx, PolicyAuth, "1.2.3.4")
	store.SetHealthy(false)

	for i := int64(1); i <= PolicyAuth.Max; i++ {
		decision := limiter.Allow(ctx, PolicyAuth, "1.2.3.4")
		require.True(t, decision.Allowed, "local attempt %d should pass", i)
		assert.True(t, decision.Fallback, "decisions during an outage come from local windows")
	}

	decision := limiter.Allow(ctx, PolicyAuth, "1.2.3.4")
	assert.False(t, decision.Allowed, "the local window enforces the same budget")
	assert.True(t, decision.Fallback)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
}

func TestRecoveryResumesSharedCounting(t *testing.T) {
	store := cache.NewMemoryStore()
	limiter := newTestLimiter(store)
	ctx := context.Background()

	store.SetHealthy(false)
	decision := limiter.Allow(ctx, PolicyAPI, "1.2.3.4")
	require.True(t, decision.Fallback)

	store.SetHealthy(true)
	decision = limiter.Allow(ctx, PolicyAPI, "1.2.3.4")
	assert.False(t, decision.Fallback, "health recovery is picked up on the next call")
}

func TestStatusAggregatesPolicies(t *testing.T) {
	store := cache.NewMemoryStore()
	limiter := newTestLimiter(store)
	ctx := context.Background()

	limiter.Allow(ctx, PolicySearch, "1.2.3.4")
	limiter.Allow(ctx, PolicySearch, "1.2.3.4")
	limiter.Allow(ctx, PolicyOrder, "1.2.3.4")

	statuses := limiter.Status(ctx, "1.2.3.4")
	require.Len(t, statuses, 4)

	byName := make(map[string]PolicyStatus, len(statuses))
	for _, status := range statuses {
		byName[status.Policy] = status
	}

	assert.Equal(t, PolicyAPI.Max, byName["api"].Remaining, "untouched policy reports the full budget")
	assert.Equal(t, PolicySearch.Max-2, byName["search"].Remaining)
	assert.Equal(t, PolicyOrder.Max-1, byName["order"].Remaining)
	assert.Greater(t, byName["search"].ResetIn, int64(0))
}

func TestClearAll(t *testing.T) {
	store := cache.NewMemoryStore()
	limiter := newTestLimiter(store)
	ctx := context.Background()

	limiter.Allow(ctx, PolicyAuth, "1.2.3.4")
	limiter.Allow(ctx, PolicyAPI, "1.2.3.4")

	store.SetHealthy(false)
	limiter.Allow(ctx, PolicySearch, "1.2.3.4")
	store.SetHealthy(true)

	cleared := limiter.ClearAll(ctx)
	assert.Equal(t, 2, cleared)

	assert.Equal(t, RemainingUnknown, limiter.Remaining(ctx, "1.2.3.4", PolicyAuth))

	store.SetHealthy(false)
	assert.Equal(t, RemainingUnknown, limiter.Remaining(ctx, "1.2.3.4", PolicySearch),
		"local windows are dropped too")
}

func TestPolicyByName(t *testing.T) {
	policy, err := PolicyByName("order")
	require.NoError(t, err)
	assert.Equal(t, PolicyOrder, policy)

	_, err = PolicyByName("bogus")
	assert.Error(t, err)
}

func TestLocalCounterSweep(t *testing.T) {
	lc := newLocalCounter()
	now := time.Now().UnixNano()

	lc.increment("rl:api:a", time.Minute, now-int64(2*time.Hour))
	lc.increment("rl:api:b", time.Minute, now)

	removed := lc.sweep(time.Hour, now)
	assert.Equal(t, 1, removed)

	_, exists := lc.count("rl:api:b", time.Minute, now)
	assert.True(t, exists)
}
