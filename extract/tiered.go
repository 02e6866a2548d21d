package extract

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/tradecrew/decision"
	"github.com/BaSui01/tradecrew/internal/metrics"
)

const defaultKeyPrefix = "tradecrew:extract:"

// TieredConfig configures the two-level extraction cache.
type TieredConfig struct {
	// EnableLocal turns the in-process tier on.
	EnableLocal bool
	// Local sizes the in-process tier.
	Local CacheConfig
	// EnableRedis turns the shared Redis tier on. It requires a client.
	EnableRedis bool
	// RedisTTL is the expiry for Redis entries, typically longer than the
	// local TTL so restarts stay warm.
	RedisTTL time.Duration
	// KeyPrefix namespaces Redis keys.
	KeyPrefix string
}

// DefaultTieredConfig returns a local-only cache configuration.
func DefaultTieredConfig() TieredConfig {
	return TieredConfig{
		EnableLocal: true,
		Local:       DefaultCacheConfig(),
		EnableRedis: false,
		RedisTTL:    24 * time.Hour,
		KeyPrefix:   defaultKeyPrefix,
	}
}

// TieredCache layers the in-process Cache over an optional shared Redis
// tier. Redis failures degrade to local-only with a warning; a cache
// problem must never break extraction.
type TieredCache struct {
	cfg     TieredConfig
	local   *Cache
	rdb     *redis.Client
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewTieredCache builds the cache. rdb may be nil, which disables the
// Redis tier regardless of cfg.EnableRedis.
func NewTieredCache(cfg TieredConfig, rdb *redis.Client, collector *metrics.Collector, logger *zap.Logger) *TieredCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.RedisTTL <= 0 {
		cfg.RedisTTL = 24 * time.Hour
	}
	if rdb == nil {
		cfg.EnableRedis = false
	}

	t := &TieredCache{
		cfg:     cfg,
		rdb:     rdb,
		metrics: collector,
		logger:  logger.With(zap.String("component", "extract_cache")),
	}
	if cfg.EnableLocal {
		t.local = NewCache(cfg.Local, logger)
	}
	return t
}

// Get looks up the record, local tier first, then Redis. A Redis hit
// backfills the local tier.
func (t *TieredCache) Get(ctx context.Context, key string) (decision.Record, bool) {
	if t.local != nil {
		if rec, ok := t.local.Get(key); ok {
			t.metrics.RecordCacheHit("local")
			return rec, true
		}
	}

	if t.cfg.EnableRedis {
		data, err := t.rdb.Get(ctx, t.cfg.KeyPrefix+key).Bytes()
		switch {
		case err == nil:
			var rec decision.Record
			if uerr := json.Unmarshal(data, &rec); uerr != nil {
				t.logger.Warn("corrupt cache entry in redis, dropping",
					zap.String("key", key), zap.Error(uerr))
				t.rdb.Del(ctx, t.cfg.KeyPrefix+key)
			} else {
				t.metrics.RecordCacheHit("redis")
				if t.local != nil {
					t.local.Set(key, rec)
				}
				return rec, true
			}
		case errors.Is(err, redis.Nil):
			// plain miss
		default:
			t.logger.Warn("redis cache unavailable, serving local only",
				zap.Error(err))
		}
	}

	t.metrics.RecordCacheMiss("tiered")
	return decision.Record{}, false
}

// Set stores the record in every enabled tier.
func (t *TieredCache) Set(ctx context.Context, key string, rec decision.Record) {
	if t.local != nil {
		before := t.local.Stats().Evictions
		t.local.Set(key, rec)
		s := t.local.Stats()
		if s.Evictions > before {
			t.metrics.RecordCacheEviction("local")
		}
		t.metrics.SetCacheSize("local", s.Size)
	}

	if t.cfg.EnableRedis {
		data, err := json.Marshal(rec)
		if err != nil {
			t.logger.Warn("cannot marshal record for redis", zap.Error(err))
			return
		}
		if err := t.rdb.Set(ctx, t.cfg.KeyPrefix+key, data, t.cfg.RedisTTL).Err(); err != nil {
			t.logger.Warn("redis cache write failed", zap.Error(err))
		}
	}
}

// Stats returns the local tier's counters (zero Stats when local is off).
func (t *TieredCache) Stats() Stats {
	if t.local == nil {
		return Stats{}
	}
	return t.local.Stats()
}

// Purge clears the local tier. Redis entries are left to their TTL.
func (t *TieredCache) Purge() {
	if t.local != nil {
		t.local.Purge()
	}
}
