// Package cache stores API responses in a durable key/value store with
// timestamp-based expiration.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"
)

const (
	DefaultPrefix = "env_monitor_"
	DefaultTTL    = time.Hour

	KeyDashboardData = "dashboard_data"
	KeyStatsData     = "stats_data"
	KeyLastFetchTime = "last_fetch_time"
)

// Entry is the stored envelope around a cached payload
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // epoch millis
}

// Cache is a prefixed response cache. Store failures are logged and
// reported as misses; no method returns an error.
type Cache struct {
	store  Store
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Cache)

func WithPrefix(prefix string) Option { return func(c *Cache) { c.prefix = prefix } }

func WithTTL(ttl time.Duration) Option { return func(c *Cache) { c.ttl = ttl } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func WithLogger(logger *slog.Logger) Option { return func(c *Cache) { c.logger = logger } }

// New creates a cache over store
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(name string) string {
	return c.prefix + name
}

// GetRaw returns the cached payload for key. Entries whose age has reached
// the TTL are evicted and reported absent.
func (c *Cache) GetRaw(ctx context.Context, key string) (json.RawMessage, bool) {
	cacheKey := c.key(key)

	raw, ok, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		c.logger.Error("error reading from cache", "key", cacheKey, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Error("error decoding cache entry", "key", cacheKey, "error", err)
		c.evict(ctx, cacheKey)
		return nil, false
	}

	age := c.now().UnixMilli() - entry.Timestamp
	if age >= c.ttl.Milliseconds() {
		c.logger.Debug("cache entry expired", "key", cacheKey, "age_ms", age)
		c.evict(ctx, cacheKey)
		return nil, false
	}

	return entry.Data, true
}

// Get decodes the cached payload for key into dst.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	data, ok := c.GetRaw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Error("error decoding cached payload", "key", c.key(key), "error", err)
		return false
	}
	return true
}

// Put stores value under key stamped with the current time, replacing any prior entry.
func (c *Cache) Put(ctx context.Context, key string, value any) {
	cacheKey := c.key(key)

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("error encoding cache payload", "key", cacheKey, "error", err)
		return
	}

	raw, err := json.Marshal(Entry{Data: data, Timestamp: c.now().UnixMilli()})
	if err != nil {
		c.logger.Error("error encoding cache entry", "key", cacheKey, "error", err)
		return
	}

	if err := c.store.Set(ctx, cacheKey, raw); err != nil {
		c.logger.Error("error writing to cache", "key", cacheKey, "error", err)
	}
}

// Clear evicts one entry
func (c *Cache) Clear(ctx context.Context, key string) {
	c.evict(ctx, c.key(key))
}

// ClearAll evicts every entry carrying the cache prefix, including markers.
func (c *Cache) ClearAll(ctx context.Context) {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		c.logger.Error("error listing cache keys", "prefix", c.prefix, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.Error("error clearing all cache", "prefix", c.prefix, "error", err)
	}
}

// Marker reads a bare timestamp stored under key. Markers never expire.
func (c *Cache) Marker(ctx context.Context, key string) (time.Time, bool) {
	cacheKey := c.key(key)

	raw, ok, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		c.logger.Error("error reading marker", "key", cacheKey, "error", err)
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}

	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		c.logger.Error("error parsing marker", "key", cacheKey, "error", err)
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// SetMarker stores t as epoch millis under key
func (c *Cache) SetMarker(ctx context.Context, key string, t time.Time) {
	cacheKey := c.key(key)
	if err := c.store.Set(ctx, cacheKey, []byte(strconv.FormatInt(t.UnixMilli(), 10))); err != nil {
		c.logger.Error("error writing marker", "key", cacheKey, "error", err)
	}
}

// Now returns the cache's clock reading
func (c *Cache) Now() time.Time {
	return c.now()
}

func (c *Cache) evict(ctx context.Context, cacheKey string) {
	if err := c.store.Delete(ctx, cacheKey); err != nil {
		c.logger.Error("error clearing cache", "key", cacheKey, "error", err)
	}
}
