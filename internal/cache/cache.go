package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"rainbowcast/internal/types"
)

// ErrMiss is returned by a Store when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is the minimal key-value contract the prediction cache needs. It is
// satisfied by the Redis-backed store in production and by in-memory fakes in
// tests.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisStore implements Store over a go-redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get fetches the value at key, mapping Redis's nil reply to ErrMiss.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetEx stores value at key with the given TTL.
func (s *RedisStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Ping verifies connectivity for health probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// entry is the serialized cache value: the stored prediction result plus the
// time it was cached. Entries are never updated in place; recomputation
// overwrites them wholesale.
type entry struct {
	Result   types.PredictionResult `json:"result"`
	CachedAt time.Time              `json:"cached_at"`
}

// PredictionCache is a time-bounded store of computed prediction results.
//
// The backing store is reached over the network and treated as best-effort: a
// circuit breaker stops hammering a down store, and every failure maps to a
// cache_unavailable error that callers recover from locally (miss on read,
// no-op on write). A failing cache never fails the surrounding prediction.
type PredictionCache struct {
	store   Store
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[string]
	logger  *slog.Logger
	clock   types.Clock
}

// NewPredictionCache creates a PredictionCache with the fixed deployment TTL.
func NewPredictionCache(store Store, ttl time.Duration, logger *slog.Logger, clock types.Clock) *PredictionCache {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "prediction-cache",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			// A miss is a normal outcome, not a store failure.
			return err == nil || errors.Is(err, ErrMiss)
		},
	})

	return &PredictionCache{
		store:   store,
		ttl:     ttl,
		breaker: cb,
		logger:  logger,
		clock:   clock,
	}
}

// TTL returns the fixed per-deployment entry lifetime.
func (c *PredictionCache) TTL() time.Duration {
	return c.ttl
}

// Get looks up a previously computed result. Returns (nil, nil) on a clean
// miss. The returned result is marked Cached before being handed back; the
// stored value itself is not rewritten. Store failures, including an open
// breaker, return a cache_unavailable error for the caller to recover from.
func (c *PredictionCache) Get(ctx context.Context, key string) (*types.PredictionResult, error) {
	raw, err := c.breaker.Execute(func() (string, error) {
		return c.store.Get(ctx, key)
	})
	if errors.Is(err, ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeCacheUnavailable, "cache read failed", err)
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		// A corrupt entry is treated as a miss; the caller recomputes and
		// overwrites it.
		c.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return nil, nil
	}

	result := e.Result
	result.Cached = true
	return &result, nil
}

// Put stores a freshly computed result under key with the deployment TTL.
// Store failures return a cache_unavailable error; callers treat it as a
// silent no-op.
func (c *PredictionCache) Put(ctx context.Context, key string, result *types.PredictionResult) error {
	e := entry{
		Result:   *result,
		CachedAt: c.clock.Now(),
	}
	// Degradation warnings describe the producing call, not the cached value.
	e.Result.Warnings = nil

	payload, err := json.Marshal(e)
	if err != nil {
		return types.NewAppError(types.ErrCodeCacheUnavailable, "cache entry encoding failed", err)
	}

	_, err = c.breaker.Execute(func() (string, error) {
		return "", c.store.SetEx(ctx, key, string(payload), c.ttl)
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeCacheUnavailable, "cache write failed", err)
	}

	return nil
}
