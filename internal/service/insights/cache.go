package insights

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/logger"
)

var ErrEmptyPush = errors.New("insights: nothing to store")

const (
	mirrorPrefix   = "insights"
	mirrorIndexKey = "insights:index"
)

// Cache keeps the latest payload per analytic family key. Writes merge into
// the current state; only the latest value per key is retained. An optional
// shared cache mirrors every write so replicas see ETL pushes.
type Cache struct {
	mu          sync.RWMutex
	entries     map[string]models.CachedInsight
	lastUpdated time.Time

	mirror    cache.Service
	mirrorTTL time.Duration
	log       *logger.Logger
	now       func() time.Time
}

type Option func(*Cache)

// WithMirror writes every Set through to svc. ttl <= 0 keeps entries forever.
func WithMirror(svc cache.Service, ttl time.Duration) Option {
	return func(c *Cache) {
		c.mirror = svc
		c.mirrorTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCache(log *logger.Logger, opts ...Option) *Cache {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Cache{
		entries: make(map[string]models.CachedInsight),
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func mirrorKey(key string) string { return cache.GenerateKey(mirrorPrefix, key) }

// Get returns the latest entry for key.
func (c *Cache) Get(key string) (models.CachedInsight, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Set merges partial into the cache and stamps every written entry with the
// current time. Mirror failures are logged, never returned.
func (c *Cache) Set(ctx context.Context, partial map[string]json.RawMessage) (models.CacheMeta, error) {
	written := make(map[string]models.CachedInsight, len(partial))

	c.mu.Lock()
	now := c.now()
	if !now.After(c.lastUpdated) {
		// keep lastUpdated strictly increasing across writes
		now = c.lastUpdated.Add(time.Nanosecond)
	}
	for k, payload := range partial {
		key := NormalizeKey(k)
		if key == "" || len(payload) == 0 {
			continue
		}
		e := models.CachedInsight{Key: key, Payload: payload, LastUpdated: now}
		c.entries[key] = e
		written[key] = e
	}
	if len(written) == 0 {
		c.mu.Unlock()
		return c.Meta(), ErrEmptyPush
	}
	c.lastUpdated = now
	keys := c.keysLocked()
	c.mu.Unlock()

	c.writeMirror(ctx, written, keys)
	return c.Meta(), nil
}

// Meta lists available keys and the time of the last write.
func (c *Cache) Meta() models.CacheMeta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := models.CacheMeta{Available: c.keysLocked()}
	if !c.lastUpdated.IsZero() {
		t := c.lastUpdated
		m.LastUpdated = &t
	}
	return m
}

func (c *Cache) keysLocked() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Cache) writeMirror(ctx context.Context, written map[string]models.CachedInsight, keys []string) {
	if c.mirror == nil {
		return
	}
	index, err := c.readIndex(ctx)
	if err != nil {
		c.log.Warn("insights mirror index read failed", logger.Error(err))
	}
	values := make(map[string]interface{}, len(written)+1)
	for k, e := range written {
		values[mirrorKey(k)] = e
	}
	values[mirrorIndexKey] = mergeKeys(index, keys)
	if err := c.mirror.MSet(ctx, values, c.mirrorTTL); err != nil {
		c.log.Warn("insights mirror write failed", logger.Error(err), logger.Strings("keys", keys))
	}
}

func (c *Cache) readIndex(ctx context.Context) ([]string, error) {
	var keys []string
	if err := c.mirror.Get(ctx, mirrorIndexKey, &keys); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return keys, nil
}

// Hydrate loads mirrored entries written by any replica and returns the ones
// that replaced or added a local entry, ordered by key. Entries not newer than
// the local copy are ignored. Canonical keys are always looked up, so a lost
// index update only hides custom ETL keys until their next push.
func (c *Cache) Hydrate(ctx context.Context) ([]models.CachedInsight, error) {
	if c.mirror == nil {
		return nil, nil
	}
	index, err := c.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	keys := mergeKeys(index, canonicalKeys(), c.keysLocked())
	c.mu.RUnlock()

	mkeys := make([]string, len(keys))
	for i, k := range keys {
		mkeys[i] = mirrorKey(k)
	}
	remote, err := cache.MGetTyped[models.CachedInsight](ctx, c.mirror, mkeys...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	var loaded []models.CachedInsight
	for _, e := range remote {
		if e.Key == "" {
			continue
		}
		if cur, ok := c.entries[e.Key]; ok && !e.LastUpdated.After(cur.LastUpdated) {
			continue
		}
		c.entries[e.Key] = e
		if e.LastUpdated.After(c.lastUpdated) {
			c.lastUpdated = e.LastUpdated
		}
		loaded = append(loaded, e)
	}
	c.mu.Unlock()

	sort.Slice(loaded, func(i, j int) bool { return loaded[i].Key < loaded[j].Key })
	if len(loaded) > 0 {
		c.log.Debug("insights cache hydrated", logger.Int("entries", len(loaded)))
	}
	return loaded, nil
}

func mergeKeys(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, k := range l {
			if _, ok := seen[k]; ok || k == "" {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
