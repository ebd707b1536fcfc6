package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"eventsbga/internal/logger"
	"eventsbga/internal/metrics"
)

const (
	cacheKeyPrefix = "availability"
	genKeyPrefix   = "availability-gen"
	recurringKey   = "recurring"
)

// Cache keeps resolved availability in Redis. Entries are keyed by a
// per-manager generation; Invalidate bumps the generation so entries written
// by readers that started before the bump are never served. A nil *Cache is
// valid and behaves as an always-missing cache.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if rdb == nil {
		return nil
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func genKey(ref string) string {
	return genKeyPrefix + ":" + ref
}

func cacheKey(ref string, gen int64, date *time.Time) string {
	scope := recurringKey
	if date != nil {
		scope = date.Format(DateLayout)
	}
	return fmt.Sprintf("%s:%s:%d:%s", cacheKeyPrefix, ref, gen, scope)
}

// Generation returns the current generation for ref. It must be read before
// the storage read whose result is later passed to Set. The second value is
// false when the cache is unusable.
func (c *Cache) Generation(ctx context.Context, ref string) (int64, bool) {
	if c == nil {
		return 0, false
	}

	gen, err := c.rdb.Get(ctx, genKey(ref)).Int64()
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.Nil):
		return 0, true
	default:
		logger.Warn("availability cache generation read failed", "ref", ref, "error", err)
		return 0, false
	}
}

func (c *Cache) Get(ctx context.Context, ref string, gen int64, date *time.Time) (*Resolution, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, cacheKey(ref, gen, date)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("availability cache read failed", "ref", ref, "error", err)
		}
		metrics.RecordCacheLookup(false)
		return nil, false
	}

	var res Resolution
	if err := json.Unmarshal(data, &res); err != nil {
		logger.Warn("availability cache entry corrupt", "ref", ref, "error", err)
		metrics.RecordCacheLookup(false)
		return nil, false
	}

	metrics.RecordCacheLookup(true)
	logger.Debug("availability cache hit", "ref", ref, "generation", gen)
	return &res, true
}

func (c *Cache) Set(ctx context.Context, ref string, gen int64, date *time.Time, res *Resolution) {
	if c == nil || res == nil {
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		logger.Warn("availability cache encode failed", "ref", ref, "error", err)
		return
	}

	if err := c.rdb.Set(ctx, cacheKey(ref, gen, date), data, c.ttl).Err(); err != nil {
		logger.Warn("availability cache write failed", "ref", ref, "error", err)
	}
}

// Invalidate retires every cached resolution for the given references.
// Retired entries are left to expire with their TTL.
func (c *Cache) Invalidate(ctx context.Context, refs ...string) {
	if c == nil {
		return
	}

	for _, ref := range refs {
		if err := c.rdb.Incr(ctx, genKey(ref)).Err(); err != nil {
			logger.Warn("availability cache invalidation failed", "ref", ref, "error", err)
		}
	}
}
