// Package cache keeps recently listed comment snapshots in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"chronicle/discuss/internal/comment"
	"chronicle/discuss/internal/logger"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 60 * time.Second
	// generation counters outlive any list entry written against them
	generationTTL = 24 * time.Hour
)

// NoGeneration is returned by Lookup when the generation could not be read.
// Store never writes an entry tagged with it.
const NoGeneration int64 = -1

var errStaleGeneration = errors.New("comment cache generation changed")

// RedisCache stores whole comment lists per discussion key.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(redisURL string, ttl time.Duration, log *logger.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(client, ttl, log), nil
}

// NewRedisCacheWithClient creates a cache from an existing Redis client
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisCache{client: client, prefix: "comments:", ttl: ttl, log: log}
}

// key escapes both parts so that ':' or '/' inside a scope or item id
// cannot make two discussions share an entry.
func (c *RedisCache) key(k comment.Key) string {
	return c.prefix + url.PathEscape(k.Scope) + "/" + url.PathEscape(k.ItemID)
}

func (c *RedisCache) generationKey(k comment.Key) string {
	return c.key(k) + "#gen"
}

// Lookup returns the cached list for k. On a miss it returns the current
// write generation of k, which the caller hands back to Store once it has
// read the list from the source. Misses and Redis failures both report
// ok=false; failures are logged and yield NoGeneration.
func (c *RedisCache) Lookup(ctx context.Context, k comment.Key) ([]comment.Comment, int64, bool) {
	values, err := c.client.MGet(ctx, c.key(k), c.generationKey(k)).Result()
	if err != nil {
		c.log.Warn("comment cache read failed", "key", k.String(), "error", err)
		return nil, NoGeneration, false
	}
	gen, err := parseGeneration(values[1])
	if err != nil {
		c.log.Warn("comment cache generation corrupt", "key", k.String(), "error", err)
		return nil, NoGeneration, false
	}
	raw, ok := values[0].(string)
	if !ok {
		return nil, gen, false
	}
	var items []comment.Comment
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.log.Warn("comment cache entry corrupt", "key", k.String(), "error", err)
		return nil, gen, false
	}
	return items, gen, true
}

func parseGeneration(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected generation value %T", v)
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse generation %q: %w", s, err)
	}
	return gen, nil
}

// Store caches items for k until the TTL passes or the key is invalidated.
// The entry is written only if no Invalidate ran since the Lookup that
// returned gen; it reports whether the entry was written.
func (c *RedisCache) Store(ctx context.Context, k comment.Key, gen int64, items []comment.Comment) bool {
	if gen == NoGeneration {
		return false
	}
	if items == nil {
		items = []comment.Comment{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		c.log.Warn("encode comment cache entry", "key", k.String(), "error", err)
		return false
	}

	genKey := c.generationKey(k)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(k), payload, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		c.log.Debug("comment cache entry skipped, list changed", "key", k.String())
	default:
		c.log.Warn("comment cache write failed", "key", k.String(), "error", err)
	}
	return false
}

// Invalidate drops the cached list for k and bumps its generation so that
// lists read before the write are not stored afterwards.
func (c *RedisCache) Invalidate(ctx context.Context, k comment.Key) {
	genKey := c.generationKey(k)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, c.key(k))
		return nil
	})
	if err != nil {
		c.log.Warn("comment cache invalidate failed", "key", k.String(), "error", err)
	}
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
