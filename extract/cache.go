package extract

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/tradecrew/decision"
)

// CacheConfig sizes the in-process extraction cache.
type CacheConfig struct {
	// Capacity is the maximum number of entries before eviction.
	Capacity int
	// TTL is how long an entry stays valid after insertion.
	TTL time.Duration
}

// DefaultCacheConfig returns the default cache sizing.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Capacity: 1000,
		TTL:      time.Hour,
	}
}

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	Requests  int64         `json:"requests"`
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Evictions int64         `json:"evictions"`
	Expired   int64         `json:"expired"`
	Size      int           `json:"size"`
	Capacity  int           `json:"capacity"`
	TTL       time.Duration `json:"ttl"`
	HitRate   float64       `json:"hit_rate_percent"`
}

type cacheEntry struct {
	key        string
	record     decision.Record
	insertedAt time.Time
	expiresAt  time.Time
	hits       int64
}

// Cache stores extraction records keyed by Key. When full it evicts exactly
// the single oldest entry by insertion time; expired entries are dropped
// lazily on read. All methods are safe for concurrent use and never fail.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = newest insertion, back = oldest
	capacity int
	ttl      time.Duration

	requests  int64
	hits      int64
	misses    int64
	evictions int64
	expired   int64

	now    func() time.Time
	logger *zap.Logger
}

// NewCache creates a cache, clamping non-positive sizing to the defaults.
func NewCache(cfg CacheConfig, logger *zap.Logger) *Cache {
	def := DefaultCacheConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: cfg.Capacity,
		ttl:      cfg.TTL,
		now:      time.Now,
		logger:   logger.With(zap.String("component", "extract_cache")),
	}
}

// Key derives the cache key for one extraction input: a 128-bit prefix of
// sha256 over kind, agent identity and the normalized text. Normalization
// collapses whitespace and lower-cases, so trivially reformatted duplicates
// still hit.
func Key(kind decision.Kind, agentID, text string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", kind, agentID, norm)))
	return hex.EncodeToString(sum[:16])
}

// Get returns the record stored under key. Expired entries are removed and
// reported as misses.
func (c *Cache) Get(key string) (decision.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests++
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return decision.Record{}, false
	}
	ent := el.Value.(*cacheEntry)
	if c.now().After(ent.expiresAt) {
		c.removeLocked(el)
		c.expired++
		c.misses++
		return decision.Record{}, false
	}
	ent.hits++
	c.hits++
	return ent.record.Clone(), true
}

// Set stores a record under key. An existing key is overwritten in place
// with a fresh TTL and counts as the newest insertion. At capacity the
// single oldest entry is evicted first.
func (c *Cache) Set(key string, rec decision.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*cacheEntry)
		ent.record = rec.Clone()
		ent.insertedAt = now
		ent.expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldestLocked()
	}

	ent := &cacheEntry{
		key:        key,
		record:     rec.Clone(),
		insertedAt: now,
		expiresAt:  now.Add(c.ttl),
	}
	c.entries[key] = c.order.PushFront(ent)
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the effectiveness counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Requests:  c.requests,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
		Size:      c.order.Len(),
		Capacity:  c.capacity,
		TTL:       c.ttl,
	}
	if c.requests > 0 {
		s.HitRate = float64(c.hits) / float64(c.requests) * 100
	}
	return s
}

// ResetStats zeroes the effectiveness counters without touching entries.
func (c *Cache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests, c.hits, c.misses, c.evictions, c.expired = 0, 0, 0, 0, 0
}

// Purge removes every entry, keeping the counters.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.logger.Debug("cache purged")
}

func (c *Cache) evictOldestLocked() {
	el := c.order.Back()
	if el == nil {
		return
	}
	ent := el.Value.(*cacheEntry)
	c.removeLocked(el)
	c.evictions++
	c.logger.Debug("evicted oldest cache entry",
		zap.String("key", ent.key),
		zap.Time("inserted_at", ent.insertedAt))
}

func (c *Cache) removeLocked(el *list.Element) {
	ent := el.Value.(*cacheEntry)
	c.order.Remove(el)
	delete(c.entries, ent.key)
}
