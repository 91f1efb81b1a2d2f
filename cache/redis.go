package cache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/saiset-co/sai-commerce/types"
)

const scanBatchSize = 100

// RedisStore owns the single shared connection to the remote key-value
// store. The connection is lazy: the first operation triggers connect, and
// concurrent first-use calls share one in-flight attempt. Once the health
// flag drops, operations short-circuit to their degraded result until a
// ping probe flips it back, so a store outage costs callers nothing beyond
// a cache miss.
type RedisStore struct {
	logger    types.Logger
	config    *types.RedisConfig
	client    *redis.Client
	connect   singleflight.Group
	connected atomic.Bool
	healthy   atomic.Bool
}

func NewRedisStore(config *types.RedisConfig, logger types.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConnections,
		DialTimeout:  config.DialTimeout.Std(),
		ReadTimeout:  config.ReadTimeout.Std(),
		WriteTimeout: config.WriteTimeout.Std(),
	})

	return &RedisStore{
		logger: logger,
		config: config,
		client: client,
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if key == "" || !r.ensure(ctx) {
		return nil, false
	}

	result, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if types.IsError(err, redis.Nil) {
			return nil, false
		}
		r.fail("failed to get cache entry", key, err)
		return nil, false
	}

	return result, true
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if key == "" || !r.ensure(ctx) {
		return false
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.fail("failed to set cache entry", key, err)
		return false
	}

	return true
}

func (r *RedisStore) Delete(ctx context.Context, key string) bool {
	if key == "" || !r.ensure(ctx) {
		return false
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.fail("failed to delete cache key", key, err)
		return false
	}

	return true
}

func (r *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) int {
	if prefix == "" || !r.ensure(ctx) {
		return 0
	}

	var (
		cursor  uint64
		deleted int
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", scanBatchSize).Result()
		if err != nil {
			r.fail("failed to scan cache keys", prefix, err)
			return deleted
		}

		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				r.fail("failed to delete cache keys", prefix, err)
				return deleted
			}
			deleted += int(n)
		}

		cursor = next
		if cursor == 0 {
			return deleted
		}
	}
}

func (r *RedisStore) Exists(ctx context.Context, key string) bool {
	if key == "" || !r.ensure(ctx) {
		return false
	}

	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		r.fail("failed to check cache key", key, err)
		return false
	}

	return n > 0
}

func (r *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, bool) {
	if key == "" || !r.ensure(ctx) {
		return 0, false
	}

	// EXPIRE NX arms the window TTL on the first increment and re-arms a
	// counter that somehow lost its TTL, so no window can persist forever.
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		r.fail("failed to increment counter", key, err)
		return 0, false
	}

	return incr.Val(), true
}

func (r *RedisStore) Counter(ctx context.Context, key string) (int64, bool) {
	if key == "" || !r.ensure(ctx) {
		return 0, false
	}

	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if types.IsError(err, redis.Nil) {
			return 0, false
		}
		r.fail("failed to read counter", key, err)
		return 0, false
	}

	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.logger.Error("counter holds non-numeric payload", zap.String("key", key), zap.Error(err))
		return 0, false
	}

	return count, true
}

func (r *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool) {
	if key == "" || !r.ensure(ctx) {
		return 0, false
	}

	remaining, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		r.fail("failed to read key ttl", key, err)
		return 0, false
	}

	if remaining <= 0 {
		return 0, false
	}

	return remaining, true
}

func (r *RedisStore) Healthy() bool {
	return r.connected.Load() && r.healthy.Load()
}

// Ping probes the store and updates the health flag. The maintenance
// scheduler calls it periodically so a recovered store flips back to
// healthy without waiting for request traffic.
func (r *RedisStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, r.config.DialTimeout.Std())
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.healthy.Store(false)
		return types.WrapError(err, "cache store ping failed")
	}

	r.connected.Store(true)
	r.healthy.Store(true)
	return nil
}

func (r *RedisStore) Close() error {
	r.connected.Store(false)
	r.healthy.Store(false)

	if err := r.client.Close(); err != nil {
		return types.WrapError(err, "failed to close redis client")
	}

	r.logger.Info("Cache store closed")
	return nil
}

// ensure reports whether the store is usable, performing the lazy first
// connect when needed. Concurrent callers share a single attempt; a caller
// whose context expires gives up without cancelling the shared attempt.
func (r *RedisStore) ensure(ctx context.Context) bool {
	if r.connected.Load() {
		return r.healthy.Load()
	}

	ch := r.connect.DoChan("connect", func() (interface{}, error) {
		pingCtx, cancel := context.WithTimeout(context.Background(), r.config.DialTimeout.Std())
		defer cancel()

		if err := r.client.Ping(pingCtx).Err(); err != nil {
			return nil, err
		}

		r.connected.Store(true)
		r.healthy.Store(true)
		r.logger.Info("Cache store connected", zap.String("addr", r.config.Addr))
		return nil, nil
	})

	select {
	case result := <-ch:
		if result.Err != nil {
			r.logger.Warn("Cache store unavailable, bypassing cache",
				zap.String("addr", r.config.Addr),
				zap.Error(result.Err))
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *RedisStore) fail(msg, key string, err error) {
	r.healthy.Store(false)
	r.logger.Error(msg, zap.String("key", key), zap.Error(err))
}
