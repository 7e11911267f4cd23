package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/engine"
	"hera-erp/configrules/pkg/rules"
	"hera-erp/configrules/pkg/telemetry/tracing"
)

// CacheNameRedis labels the shared cache in logs and metrics.
const CacheNameRedis = "redis"

// RedisCache is a cache-aside decorator backed by Redis, shared between
// service replicas. Redis faults are recorded and the call falls through to
// the backing store, so Redis is never a hard dependency.
type RedisCache struct {
	next     engine.RuleStore
	client   redis.UniversalClient
	ttl      time.Duration
	prefix   string
	logger   *slog.Logger
	recorder Recorder
}

// NewRedisClient builds a client from cfg.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaxRetries:   1,
	})
}

// NewRedisCache wraps next with a Redis cache using client.
func NewRedisCache(next engine.RuleStore, client redis.UniversalClient, cfg *config.RedisConfig, logger *slog.Logger, recorder Recorder) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := config.DefaultRedisTTL
	prefix := config.DefaultRedisKeyPrefix
	if cfg != nil {
		if cfg.TTL > 0 {
			ttl = cfg.TTL
		}
		if cfg.KeyPrefix != "" {
			prefix = cfg.KeyPrefix
		}
	}
	return &RedisCache{
		next:     next,
		client:   client,
		ttl:      ttl,
		prefix:   prefix,
		logger:   logger.With("component", "store.redis"),
		recorder: orNop(recorder),
	}
}

// FetchActiveRules serves the pair from Redis when cached.
func (c *RedisCache) FetchActiveRules(ctx context.Context, tenantID, configKey string) ([]rules.ConfigurationRule, error) {
	return c.get(ctx, c.key(tenantID, "key:"+configKey), func(ctx context.Context) ([]rules.ConfigurationRule, error) {
		return c.next.FetchActiveRules(ctx, tenantID, configKey)
	})
}

// ListActiveRules serves the tenant's rule list from Redis when cached.
func (c *RedisCache) ListActiveRules(ctx context.Context, tenantID string) ([]rules.ConfigurationRule, error) {
	return c.get(ctx, c.key(tenantID, "all"), func(ctx context.Context) ([]rules.ConfigurationRule, error) {
		return c.next.ListActiveRules(ctx, tenantID)
	})
}

func (c *RedisCache) key(tenantID, suffix string) string {
	return fmt.Sprintf("%s%s:%s", c.prefix, tenantID, suffix)
}

func (c *RedisCache) get(ctx context.Context, key string, load func(context.Context) ([]rules.ConfigurationRule, error)) ([]rules.ConfigurationRule, error) {
	span := trace.SpanFromContext(ctx)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var list []rules.ConfigurationRule
		decodeErr := json.Unmarshal(data, &list)
		if decodeErr == nil {
			c.recorder.RecordCacheHit(CacheNameRedis)
			tracing.SetCacheAttributes(span, true, CacheNameRedis)
			if list == nil {
				list = []rules.ConfigurationRule{}
			}
			return list, nil
		}
		c.recorder.RecordCacheError(CacheNameRedis)
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", decodeErr)
	case errors.Is(err, redis.Nil):
		c.recorder.RecordCacheMiss(CacheNameRedis)
	default:
		c.recorder.RecordCacheError(CacheNameRedis)
		c.logger.Warn("redis get failed, reading through", "key", key, "error", err)
	}
	tracing.SetCacheAttributes(span, false, CacheNameRedis)

	list, err := load(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(list)
	if err != nil {
		c.logger.Warn("failed to encode rules for cache", "key", key, "error", err)
		return list, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.recorder.RecordCacheError(CacheNameRedis)
		c.logger.Warn("redis set failed", "key", key, "error", err)
	}
	return list, nil
}

// InvalidateTenant deletes the cached entries of one tenant.
func (c *RedisCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	return c.deleteMatching(ctx, c.prefix+tenantID+":*")
}

// Purge deletes every entry under the key prefix.
func (c *RedisCache) Purge(ctx context.Context) error {
	return c.deleteMatching(ctx, c.prefix+"*")
}

func (c *RedisCache) deleteMatching(ctx context.Context, pattern string) error {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 256).Result()
		if err != nil {
			c.recorder.RecordCacheError(CacheNameRedis)
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.recorder.RecordCacheError(CacheNameRedis)
				return fmt.Errorf("delete %s: %w", pattern, err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.Debug("cache entries deleted", "pattern", pattern, "count", deleted)
	return nil
}

// Ping checks Redis and the backing store. A Redis failure is reported so
// readiness shows the degraded cache.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if p, ok := c.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
