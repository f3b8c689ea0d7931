// Package cache implements the two-tier cache hierarchy of SPEC_FULL.md §4
// (C2): a TTL-based fast key-value cache backed by Redis, grounded on
// services/pricing_service/src/DynamicPricingEngine.go's
// RedisClient.Get/Set-as-JSON pattern and the original Python
// app/services/providers/base.py (redis_get_json/redis_set_json), plus a
// durable per-shipment RateSnapshot store (snapshot_store.go).
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"veritariff/tariffengine/internal/logging"
	"veritariff/tariffengine/internal/metrics"
)

// FastCache is a thin JSON-over-Redis cache, keyed per provider as
// "uk_tariff:<code>", "eu_taric:<hs>:<origin>:<pref>", "vat:<cc>:standard",
// and "fx:<base>:<quote>" per spec.md §6.
type FastCache struct {
	redis   *redis.Client
	log     *logging.Logger
	metrics *metrics.EngineMetrics
}

// NewFastCache wraps an existing redis.Client. m may be nil, in which case
// cache-hit-rate observations are skipped.
func NewFastCache(client *redis.Client, log *logging.Logger, m *metrics.EngineMetrics) *FastCache {
	if log == nil {
		log = logging.Global()
	}
	return &FastCache{redis: client, log: log, metrics: m}
}

// GetJSON looks up key and unmarshals its value into out. It returns
// (true, nil) on a hit, (false, nil) on a clean miss, and (false, err) on a
// Redis or unmarshal failure — callers treat a miss and an error the same
// way (fall through to the next tier) but may want to log the difference.
func (c *FastCache) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	start := time.Now()
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.log.CacheLogger("get", key, false, time.Since(start))
		return false, nil
	}
	if err != nil {
		c.log.CacheLogger("get", key, false, time.Since(start))
		return false, err
	}
	c.log.CacheLogger("get", key, true, time.Since(start))
	if c.metrics != nil {
		c.metrics.CacheHitRate.Inc()
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals value and stores it at key with the given TTL.
func (c *FastCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	start := time.Now()
	err = c.redis.Set(ctx, key, raw, ttl).Err()
	c.log.CacheLogger("set", key, err == nil, time.Since(start))
	return err
}
