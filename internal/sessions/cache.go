package sessions

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// BuildFunc constructs a runtime instance for a user on cache miss.
type BuildFunc func(userID string) (*Instance, error)

// Cache holds per-user runtime instances with strict LRU eviction. Evicted
// and removed instances have their gateway handles released. The mutex only
// guards the LRU; builds run outside it, coalesced per user, so one user's
// slow build never blocks another user's hit.
type Cache struct {
	mu     sync.Mutex
	lru    *lru.Cache[string, *Instance]
	flight singleflight.Group
	build  BuildFunc
	logger *slog.Logger
}

// NewCache creates a session cache with the specified capacity.
func NewCache(capacity int, build BuildFunc, logger *slog.Logger) (*Cache, error) {
	cache := &Cache{
		build:  build,
		logger: logger,
	}

	inner, err := lru.NewWithEvict(capacity, func(userID string, inst *Instance) {
		logger.Debug("session released", "user_id", userID)
		inst.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}

	cache.lru = inner
	return cache, nil
}

// GetOrCreate returns the cached instance for the user, building one on
// miss. A hit refreshes recency. Concurrent misses for the same user share
// one build; if a racing build already populated the entry, the loser's
// instance is closed and the cached one returned.
func (c *Cache) GetOrCreate(userID string) (*Instance, error) {
	if inst, ok := c.get(userID); ok {
		return inst, nil
	}

	v, err, _ := c.flight.Do(userID, func() (any, error) {
		if inst, ok := c.get(userID); ok {
			return inst, nil
		}

		inst, err := c.build(userID)
		if err != nil {
			return nil, fmt.Errorf("build session for %s: %w", userID, err)
		}

		c.mu.Lock()
		if existing, ok := c.lru.Get(userID); ok {
			c.mu.Unlock()
			inst.Close()
			return existing, nil
		}
		c.lru.Add(userID, inst)
		c.mu.Unlock()

		c.logger.Debug("session created", "user_id", userID)
		return inst, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Instance), nil
}

func (c *Cache) get(userID string) (*Instance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(userID)
}

// Clear drops one user's instance, releasing its gateway handle. Returns
// whether an instance was present.
func (c *Cache) Clear(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(userID)
}

// ClearAll drops every cached instance.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of cached instances.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
