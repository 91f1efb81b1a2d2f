package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/metrics"
	"github.com/saiset-co/sai-commerce/types"
)

const (
	// RemainingUnknown is returned when no window entry exists yet: the
	// full quota is available, which is distinct from zero remaining.
	RemainingUnknown int64 = -1

	defaultCommandTimeout = 250 * time.Millisecond
	localWindowMaxAge     = time.Hour
)

type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
	Fallback   bool
}

type PolicyStatus struct {
	Policy    string `json:"policy"`
	Remaining int64  `json:"remaining"`
	Total     int64  `json:"total"`
	ResetIn   int64  `json:"reset_in_seconds"`
}

// Limiter counts requests per (policy, client) in fixed windows backed by
// the shared cache store. The store health flag is rechecked on every call:
// while the store is down or a command exceeds its bounded timeout, the
// limiter decides from in-process windows instead of blocking the request
// pipeline, and returns to shared counting as soon as health flips back.
type Limiter struct {
	store   types.CacheStore
	local   *localCounter
	logger  types.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewLimiter(store types.CacheStore, logger types.Logger, m *metrics.Metrics, commandTimeout time.Duration) *Limiter {
	if commandTimeout <= 0 {
		commandTimeout = defaultCommandTimeout
	}

	return &Limiter{
		store:   store,
		local:   newLocalCounter(),
		logger:  logger,
		metrics: m,
		timeout: commandTimeout,
	}
}

// Allow increments the window counter for the client and decides. A denied
// increment is not rolled back: over-limit attempts keep the window
// saturated.
func (l *Limiter) Allow(ctx context.Context, policy Policy, clientKey string) Decision {
	key := policy.Key(clientKey)

	if l.store.Healthy() {
		cctx, cancel := context.WithTimeout(ctx, l.timeout)
		count, ok := l.store.Increment(cctx, key, policy.Window)
		cancel()

		if ok {
			return l.decide(ctx, policy, key, count, false)
		}

		l.logger.Warn("rate limit store command failed, using local fallback",
			zap.String("policy", policy.Name),
			zap.String("client", clientKey))
	}

	count := l.local.increment(key, policy.Window, time.Now().UnixNano())
	l.metrics.RateFallback(policy.Name)

	return l.decide(ctx, policy, key, count, true)
}

// Remaining reports max-count for the client's current window, or
// RemainingUnknown when no window entry exists yet.
func (l *Limiter) Remaining(ctx context.Context, clientKey string, policy Policy) int64 {
	key := policy.Key(clientKey)

	if l.store.Healthy() {
		cctx, cancel := context.WithTimeout(ctx, l.timeout)
		count, exists := l.store.Counter(cctx, key)
		cancel()

		if exists {
			return clampRemaining(policy.Max - count)
		}
		if l.store.Healthy() {
			return RemainingUnknown
		}
	}

	count, exists := l.local.count(key, policy.Window, time.Now().UnixNano())
	if !exists {
		return RemainingUnknown
	}

	return clampRemaining(policy.Max - count)
}

// Status aggregates the remaining quota for a client across all policies,
// for the admin inspection endpoint.
func (l *Limiter) Status(ctx context.Context, clientKey string) []PolicyStatus {
	policies := Policies()
	statuses := make([]PolicyStatus, 0, len(policies))

	for _, policy := range policies {
		remaining := l.Remaining(ctx, clientKey, policy)
		if remaining == RemainingUnknown {
			remaining = policy.Max
		}

		statuses = append(statuses, PolicyStatus{
			Policy:    policy.Name,
			Remaining: remaining,
			Total:     policy.Max,
			ResetIn:   int64(l.resetIn(ctx, policy, clientKey) / time.Second),
		})
	}

	return statuses
}

// ClearAll deletes every counter under the rate-limit namespace and drops
// the local fallback windows. Returns the number of shared counters
// removed.
func (l *Limiter) ClearAll(ctx context.Context) int {
	cleared := l.store.DeleteByPrefix(ctx, KeyPrefix)
	dropped := l.local.reset()

	l.logger.Info("rate limit counters cleared",
		zap.Int("shared", cleared),
		zap.Int("local", dropped))

	return cleared
}

// SweepLocal drops idle local fallback windows; wired to the maintenance
// scheduler.
func (l *Limiter) SweepLocal() int {
	return l.local.sweep(localWindowMaxAge, time.Now().UnixNano())
}

func (l *Limiter) decide(ctx context.Context, policy Policy, key string, count int64, fallback bool) Decision {
	allowed := count <= policy.Max

	if allowed {
		l.metrics.RateAllowed(policy.Name)
	} else {
		l.metrics.RateDenied(policy.Name)
	}

	decision := Decision{
		Allowed:   allowed,
		Remaining: clampRemaining(policy.Max - count),
		Fallback:  fallback,
	}

	if !allowed {
		decision.RetryAfter = l.resetInFrom(ctx, policy, key, fallback)
	}

	return decision
}

func (l *Limiter) resetIn(ctx context.Context, policy Policy, clientKey string) time.Duration {
	return l.resetInFrom(ctx, policy, policy.Key(clientKey), !l.store.Healthy())
}

func (l *Limiter) resetInFrom(ctx context.Context, policy Policy, key string, fallback bool) time.Duration {
	if !fallback {
		cctx, cancel := context.WithTimeout(ctx, l.timeout)
		remaining, ok := l.store.TTL(cctx, key)
		cancel()

		if ok {
			return remaining
		}
		return 0
	}

	return l.local.resetIn(key, policy.Window, time.Now().UnixNano())
}

func clampRemaining(remaining int64) int64 {
	if remaining < 0 {
		return 0
	}
	return remaining
}
