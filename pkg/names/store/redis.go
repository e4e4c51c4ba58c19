package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/gendercode/pkg/logging"
	"github.com/otherjamesbrown/gendercode/pkg/names"
)

// DefaultCacheTTL is how long cached tables live in Redis.
const DefaultCacheTTL = time.Hour

// RedisCache is a read-through cache in front of another Source. Tables are
// stored as JSON under gendercode:dict:<source>:<tier>. Redis failures are
// logged and the underlying source is read instead.
type RedisCache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisCache wraps source with a Redis cache.
func NewRedisCache(client *redis.Client, source Source, ttl time.Duration, logger logging.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RedisCache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logger.With(logging.F("component", "dictionary_cache")),
	}
}

// Name implements Source.
func (c *RedisCache) Name() string {
	return c.source.Name()
}

// Key returns the Redis key for one table.
func (c *RedisCache) Key(tier names.Tier) string {
	return fmt.Sprintf("gendercode:dict:%s:%s", c.source.Name(), tier)
}

// Table implements Source.
func (c *RedisCache) Table(ctx context.Context, tier names.Tier) ([]names.Entry, error) {
	key := c.Key(tier)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entries []names.Entry
		jsonErr := json.Unmarshal(data, &entries)
		if jsonErr == nil {
			return entries, nil
		}
		c.logger.Warn("Discarding corrupt cached table", logging.F("key", key), logging.Err(jsonErr))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("Dictionary cache unavailable", logging.F("key", key), logging.Err(err))
	}

	entries, err := c.source.Table(ctx, tier)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(entries); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug("Failed to populate dictionary cache", logging.F("key", key), logging.Err(err))
		}
	}
	return entries, nil
}

// Invalidate removes every cached table so the next read goes to the source.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	keys := make([]string, 0, len(names.Tiers))
	for _, tier := range names.Tiers {
		keys = append(keys, c.Key(tier))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate dictionary cache: %w", err)
	}
	return nil
}

// ReplaceTable implements Writer when the wrapped source does, and drops the
// cached copy of the table.
func (c *RedisCache) ReplaceTable(ctx context.Context, tier names.Tier, entries []names.Entry) error {
	w, ok := c.source.(Writer)
	if !ok {
		return fmt.Errorf("source %s is read-only", c.source.Name())
	}
	if err := w.ReplaceTable(ctx, tier, entries); err != nil {
		return err
	}
	if err := c.client.Del(ctx, c.Key(tier)).Err(); err != nil {
		c.logger.Warn("Failed to drop cached table", logging.F("tier", tier.String()), logging.Err(err))
	}
	return nil
}
