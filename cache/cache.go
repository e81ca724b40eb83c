// Package cache memoizes warm WASM instances keyed by compiled-artifact
// identity, with strict least-recently-used eviction once capacity is
// exceeded. It is the performance-critical layer described in spec §4.4:
// the module cache above the engine amortizes JIT compilation, and this
// cache amortizes instantiation (memory allocation, import-table binding).
package cache

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// Instantiator builds a fresh instance of a compiled module against an
// import table. Use calls this on a miss, or after a previously cached
// instance has been consumed (see Use).
type Instantiator func(ctx context.Context, compiled wazero.CompiledModule) (api.Module, error)

// Cache is a bounded LRU pool of warm instances keyed by artifact identity.
// The teacher's own module_cache.go evicts "the first entry Go's map
// iteration happens to return" — explicitly not real LRU by its own
// comment. This type replaces that with github.com/hashicorp/golang-lru/v2,
// which gives strict recency tracking on every access, satisfying spec §8
// testable property 5.
type Cache struct {
	mu       sync.Mutex
	lru      *lru.Cache[string, api.Module]
	locks    map[string]*sync.Mutex
	capacity int
	logger   *zap.Logger
}

// New builds a Cache holding at most capacity warm instances.
func New(capacity int, logger *zap.Logger) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache: capacity must be positive, got %d", capacity)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{capacity: capacity, logger: logger, locks: make(map[string]*sync.Mutex)}

	evicted, err := lru.NewWithEvict(capacity, func(id string, instance api.Module) {
		_ = instance.Close(context.Background())
		c.logger.Debug("evicted instance from cache", zap.String("artifact_id", id))
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.lru = evicted
	return c, nil
}

// lockFor returns id's dedicated mutex, creating it on first access. Every
// id ever passed to Use keeps its mutex for the Cache's lifetime; this is a
// bounded cost in practice, since the set of distinct artifact ids a host
// application runs is the set of oracle scripts it has deployed, not an
// unbounded stream.
func (c *Cache) lockFor(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

// Use obtains the cached instance for id — instantiating it via create on a
// miss — and invokes fn against it while holding id's exclusive lock, the
// same serialization spec §5 already requires ("accesses are serialized by
// an exclusive guard held for the duration of get_instance"), just scoped
// per artifact id instead of globally so unrelated artifacts still run
// concurrently (spec §5: "Parallel across invocations... possibly sharing
// one Cache").
//
// fn reports consumed=true to mean the instance trapped or otherwise must
// not be handed to a later caller; Use then evicts and closes it, so the
// next Use call for id pays to instantiate a fresh one — this is what
// spec §4.4's get_instance means by "re-instantiates if the cached instance
// has been consumed." Otherwise the instance is left cached, available for
// the next invocation against the same artifact to reuse without paying
// instantiation cost again.
func (c *Cache) Use(ctx context.Context, id string, compiled wazero.CompiledModule, create Instantiator, fn func(instance api.Module) (consumed bool, err error)) error {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	instance, hit := c.lru.Get(id)
	c.mu.Unlock()

	if hit {
		c.logger.Debug("cache hit", zap.String("artifact_id", id))
	} else {
		created, err := create(ctx, compiled)
		if err != nil {
			return err
		}
		instance = created

		c.mu.Lock()
		c.lru.Add(id, instance)
		c.logger.Debug("cached instance", zap.String("artifact_id", id), zap.Int("size", c.lru.Len()))
		c.mu.Unlock()
	}

	consumed, fnErr := fn(instance)
	if consumed {
		c.mu.Lock()
		if cur, ok := c.lru.Peek(id); ok && cur == instance {
			c.lru.Remove(id) // closes instance via the eviction callback
		}
		c.mu.Unlock()
	}
	return fnErr
}

// Remove evicts id from the cache, closing its instance if present.
func (c *Cache) Remove(ctx context.Context, id string) {
	lock := c.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(id)
}

// Len reports the current number of cached instances.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Capacity reports the maximum number of cached instances.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Close closes every cached instance and empties the cache.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge() // invokes the eviction callback, which closes each instance
	return nil
}
