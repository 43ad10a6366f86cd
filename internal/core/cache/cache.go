// Package cache implements a two-tier expiring cache: a fast in-process
// tier and a durable tier behind a DurableStore. Durable-tier failures
// degrade to fast-tier-only behavior instead of propagating.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldsync/fieldsync/internal/core"
)

// DurableStore is the durable tier. Values are opaque pre-serialized blobs;
// the cache only interprets its own expiry metadata.
type DurableStore interface {
	GetEntry(ctx context.Context, key string) ([]byte, time.Time, error)
	SetEntry(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	DeleteEntry(ctx context.Context, key string) error
	DeleteEntries(ctx context.Context) error
	DeleteEntriesByPrefix(ctx context.Context, prefix string) error
	ListEntryMeta(ctx context.Context) ([]core.CacheEntryMeta, error)
}

// Config controls default TTLs and the expiry-tracking policy.
type Config struct {
	// FastTTL is the default fast-tier TTL. Default: 5m.
	FastTTL time.Duration

	// DurableTTL is the default durable-tier TTL. Default: 24h.
	DurableTTL time.Duration

	// Policy selects how persisted entries expire in the fast tier.
	Policy Policy
}

func (c Config) withDefaults() Config {
	if c.FastTTL <= 0 {
		c.FastTTL = 5 * time.Minute
	}
	if c.DurableTTL <= 0 {
		c.DurableTTL = 24 * time.Hour
	}
	return c
}

type entry struct {
	value         []byte
	fastExpiry    time.Time
	durableExpiry time.Time
	persisted     bool
}

// Cache is the tiered cache. Construct with New and share by reference.
type Cache struct {
	cfg     Config
	durable DurableStore
	logger  *zap.Logger
	clock   func() time.Time

	// ready is closed once durable bookkeeping has loaded; every
	// operation waits on it so startup reads do not race the load.
	ready    chan struct{}
	initOnce sync.Once

	mu      sync.Mutex
	entries map[string]*entry
	// meta tracks key -> durable expiry for entries known to exist in the
	// durable tier, so fast-tier misses skip the store for absent keys.
	meta map[string]time.Time
}

// Option customizes a Cache.
type Option func(*Cache)

// WithLogger attaches a logger. Default is a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock injects a clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New creates a Cache. durable may be nil for a fast-tier-only cache.
// Bookkeeping loads lazily on first use behind a shared init gate.
func New(cfg Config, durable DurableStore, opts ...Option) *Cache {
	c := &Cache{
		cfg:     cfg.withDefaults(),
		durable: durable,
		logger:  zap.NewNop(),
		clock:   func() time.Time { return time.Now().UTC() },
		ready:   make(chan struct{}),
		entries: make(map[string]*entry),
		meta:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// init loads key->expiry bookkeeping from the durable tier exactly once.
// Failures degrade to an empty bookkeeping map.
func (c *Cache) await(ctx context.Context) {
	c.initOnce.Do(func() {
		go func() {
			defer close(c.ready)
			if c.durable == nil {
				return
			}
			metas, err := c.durable.ListEntryMeta(context.Background())
			if err != nil {
				c.logger.Warn("durable cache bookkeeping load failed; continuing fast-tier-only", zap.Error(err))
				return
			}
			c.mu.Lock()
			for _, m := range metas {
				c.meta[m.Key] = m.ExpiresAt
			}
			c.mu.Unlock()
		}()
	})

	select {
	case <-c.ready:
	case <-ctx.Done():
	}
}

// Get returns the cached value for key, consulting the fast tier first and
// falling back to the durable tier. A durable hit is promoted into the
// fast tier with the durable remaining expiry.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	return c.get(ctx, key, false)
}

// GetFast checks only the fast tier.
func (c *Cache) GetFast(ctx context.Context, key string) ([]byte, bool) {
	return c.get(ctx, key, true)
}

func (c *Cache) get(ctx context.Context, key string, fastOnly bool) ([]byte, bool) {
	c.await(ctx)

	now := c.clock()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if now.Before(c.effectiveExpiry(e)) {
			value := e.value
			c.mu.Unlock()
			return value, true
		}
		// Lazy eviction of the expired fast entry.
		delete(c.entries, key)
	}

	if fastOnly || c.durable == nil {
		c.mu.Unlock()
		return nil, false
	}

	// Bookkeeping is authoritative for the durable tier: keys it does not
	// list are misses without a store read.
	expiry, known := c.meta[key]
	if !known {
		c.mu.Unlock()
		return nil, false
	}
	if !now.Before(expiry) {
		delete(c.meta, key)
		c.mu.Unlock()
		return nil, false
	}
	c.mu.Unlock()

	value, expiresAt, err := c.durable.GetEntry(ctx, key)
	if err != nil {
		c.logger.Debug("durable cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if value == nil {
		c.mu.Lock()
		delete(c.meta, key)
		c.mu.Unlock()
		return nil, false
	}

	// Promote with the durable remaining expiry, not a fresh fast TTL.
	c.mu.Lock()
	c.entries[key] = &entry{
		value:         value,
		fastExpiry:    expiresAt,
		durableExpiry: expiresAt,
		persisted:     true,
	}
	c.meta[key] = expiresAt
	c.mu.Unlock()

	return value, true
}

// SetOptions override per-call TTLs and persistence for Set.
type SetOptions struct {
	// FastTTL overrides the default fast-tier TTL when > 0.
	FastTTL time.Duration
	// DurableTTL overrides the default durable-tier TTL when > 0.
	DurableTTL time.Duration
	// SkipPersist keeps the value out of the durable tier.
	SkipPersist bool
}

// Set stores value under key in the fast tier and, unless skipped,
// persists it to the durable tier. Durable write failures degrade to a
// fast-tier-only entry. Last writer wins per key.
func (c *Cache) Set(ctx context.Context, key string, value []byte, opts ...SetOptions) {
	c.await(ctx)

	var o SetOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	fastTTL := c.cfg.FastTTL
	if o.FastTTL > 0 {
		fastTTL = o.FastTTL
	}
	durableTTL := c.cfg.DurableTTL
	if o.DurableTTL > 0 {
		durableTTL = o.DurableTTL
	}

	now := c.clock()
	e := &entry{
		value:      value,
		fastExpiry: now.Add(fastTTL),
	}

	persisted := false
	durableExpiry := now.Add(durableTTL)
	if !o.SkipPersist && c.durable != nil {
		if err := c.durable.SetEntry(ctx, key, value, durableExpiry); err != nil {
			c.logger.Warn("durable cache write failed; entry is fast-tier-only",
				zap.String("key", key), zap.Error(err))
		} else {
			persisted = true
		}
	}

	c.mu.Lock()
	if persisted {
		e.persisted = true
		e.durableExpiry = durableExpiry
		c.meta[key] = durableExpiry
	} else {
		delete(c.meta, key)
	}
	c.entries[key] = e
	c.mu.Unlock()
}

// Remove deletes key from both tiers.
func (c *Cache) Remove(ctx context.Context, key string) {
	c.await(ctx)

	c.mu.Lock()
	delete(c.entries, key)
	delete(c.meta, key)
	c.mu.Unlock()

	if c.durable != nil {
		if err := c.durable.DeleteEntry(ctx, key); err != nil {
			c.logger.Warn("durable cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Clear empties both tiers.
func (c *Cache) Clear(ctx context.Context) {
	c.await(ctx)

	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.meta = make(map[string]time.Time)
	c.mu.Unlock()

	if c.durable != nil {
		if err := c.durable.DeleteEntries(ctx); err != nil {
			c.logger.Warn("durable cache clear failed", zap.Error(err))
		}
	}
}

// ClearPrefix removes every key starting with prefix from both tiers.
func (c *Cache) ClearPrefix(ctx context.Context, prefix string) {
	c.await(ctx)

	c.mu.Lock()
	for key := range c.entries {
		if hasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	for key := range c.meta {
		if hasPrefix(key, prefix) {
			delete(c.meta, key)
		}
	}
	c.mu.Unlock()

	if c.durable != nil {
		if err := c.durable.DeleteEntriesByPrefix(ctx, prefix); err != nil {
			c.logger.Warn("durable cache prefix clear failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}

// Len reports the number of live fast-tier entries.
func (c *Cache) Len(ctx context.Context) int {
	c.await(ctx)

	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, e := range c.entries {
		if now.Before(c.effectiveExpiry(e)) {
			count++
		}
	}
	return count
}

// effectiveExpiry applies the configured policy: persisted entries under
// PolicyPreferDurable stay readable until the durable expiry.
func (c *Cache) effectiveExpiry(e *entry) time.Time {
	if e.persisted && c.cfg.Policy == PolicyPreferDurable {
		return e.durableExpiry
	}
	return e.fastExpiry
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
