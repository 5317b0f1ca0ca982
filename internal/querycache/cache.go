// Package querycache caches remote collections keyed by resource and the
// fully composed request URL, scoped to the caller that fetched them.
//
// Concurrent fetches of the same key share one upstream call. Invalidation
// is coarse: it drops every entry of a resource and bumps the resource's
// generation so fetches already in flight cannot write their older answer
// back into the cache. An invalidation whose store delete failed stays
// pending: reads of that resource bypass the store until a retry succeeds.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a cached collection stays fresh.
const DefaultTTL = 30 * time.Second

// Store holds encoded collections. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value for key and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Observer receives hit/miss notifications.
type Observer interface {
	ObserveCache(resource string, hit bool)
}

// Key identifies one cached collection.
type Key struct {
	Resource string
	// Owner scopes the entry to one caller, see Owner. Entries are never
	// served across owners.
	Owner string
	URL   string
}

// String returns the storage key, resource first so a resource can be
// dropped by prefix for every owner at once.
func (k Key) String() string { return k.Resource + "|" + k.Owner + "|" + k.URL }

// Owner derives the cache owner of an access token. The token itself is
// never part of a storage key.
func Owner(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}

func resourcePrefix(resource string) string { return resource + "|" }

// Cache is a process-wide query cache.
type Cache struct {
	store    Store
	ttl      time.Duration
	observer Observer
	logger   *zap.Logger

	group singleflight.Group

	// mu orders writes against invalidation: Set runs under the read
	// lock, Invalidate under the write lock.
	mu      sync.RWMutex
	gens    map[string]uint64
	pending map[string]bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the freshness window of cached entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithObserver reports hits and misses to o.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		ttl:     DefaultTTL,
		logger:  zap.NewNop(),
		gens:    make(map[string]uint64),
		pending: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invalidate drops every cached entry of resource. When the store fails
// the invalidation stays pending and the resource is read past the store
// until a later delete succeeds.
func (c *Cache) Invalidate(ctx context.Context, resource string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[resource]++
	if err := c.deleteLocked(ctx, resource); err != nil {
		return fmt.Errorf("invalidate %s: %w", resource, err)
	}
	c.logger.Debug("query cache invalidated", zap.String("resource", resource))
	return nil
}

func (c *Cache) deleteLocked(ctx context.Context, resource string) error {
	if err := c.store.DeletePrefix(ctx, resourcePrefix(resource)); err != nil {
		c.pending[resource] = true
		c.logger.Warn("query cache invalidation failed",
			zap.String("resource", resource), zap.Error(err))
		return err
	}
	delete(c.pending, resource)
	return nil
}

// usable reports whether the store may be read for resource, retrying a
// pending invalidation first.
func (c *Cache) usable(ctx context.Context, resource string) bool {
	c.mu.RLock()
	pending := c.pending[resource]
	c.mu.RUnlock()
	if !pending {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending[resource] {
		return true
	}
	return c.deleteLocked(ctx, resource) == nil
}

func (c *Cache) generation(resource string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[resource]
}

// set writes raw unless resource was invalidated since gen or has an
// invalidation pending.
func (c *Cache) set(ctx context.Context, key Key, gen uint64, raw []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gens[key.Resource] != gen || c.pending[key.Resource] {
		return nil
	}
	return c.store.Set(ctx, key.String(), raw, c.ttl)
}

func (c *Cache) observe(resource string, hit bool) {
	if c.observer != nil {
		c.observer.ObserveCache(resource, hit)
	}
}

// Lookup returns the fresh cached value for key, if any. Store and decode
// failures count as a miss, as does a resource with a pending
// invalidation.
func Lookup[T any](ctx context.Context, c *Cache, key Key) (T, bool) {
	var zero T
	if !c.usable(ctx, key.Resource) {
		return zero, false
	}
	raw, ok, err := c.store.Get(ctx, key.String())
	if err != nil {
		c.logger.Warn("query cache read failed", zap.String("key", key.String()), zap.Error(err))
		return zero, false
	}
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("query cache entry undecodable", zap.String("key", key.String()), zap.Error(err))
		return zero, false
	}
	return v, true
}

// Fetch returns the cached value for key, or calls fn and caches its
// result. Callers asking for the same key at the same generation share a
// single call to fn. The shared call is detached from the caller's
// cancellation so one closing page cannot fail another page's read.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	if v, ok := Lookup[T](ctx, c, key); ok {
		c.observe(key.Resource, true)
		return v, nil
	}
	c.observe(key.Resource, false)

	gen := c.generation(key.Resource)
	flight := key.String() + "#" + strconv.FormatUint(gen, 10)
	detached := context.WithoutCancel(ctx)

	res, err, _ := c.group.Do(flight, func() (any, error) {
		v, err := fn(detached)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			c.logger.Warn("query cache encode failed", zap.String("key", key.String()), zap.Error(err))
			return v, nil
		}
		if err := c.set(detached, key, gen, raw); err != nil {
			c.logger.Warn("query cache write failed", zap.String("key", key.String()), zap.Error(err))
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("query cache: shared result for %s has type %T", key, res)
	}
	return v, nil
}
