package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pricewise/backend/internal/domain"
)

// DefaultCleanupInterval is how often expired entries are swept
const DefaultCleanupInterval = 10 * time.Minute

type cacheItem struct {
	value      []byte
	expiration time.Time
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// MemoryCache is a thread-safe in-process cache with TTL support.
// It is used when no Redis address is configured.
type MemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

var _ domain.CacheRepository = (*MemoryCache)(nil)

// NewMemoryCache creates a cache that sweeps expired entries every interval.
// A non-positive interval disables the sweeper.
func NewMemoryCache(interval time.Duration) *MemoryCache {
	c := &MemoryCache{
		data: make(map[string]cacheItem),
		now:  time.Now,
		stop: make(chan struct{}),
	}
	if interval > 0 {
		go c.cleanupExpired(interval)
	}
	return c
}

// Get returns a copy of the stored bytes or domain.ErrCacheMiss
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, ok := c.data[key]
	if !ok || item.expired(c.now()) {
		return nil, domain.ErrCacheMiss
	}
	return append([]byte(nil), item.value...), nil
}

// Set stores value for ttl. A zero ttl keeps the entry until it is deleted.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	item := cacheItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiration = c.now().Add(ttl)
	}
	c.data[key] = item
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Exists reports whether key is present and not expired
func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, ok := c.data[key]
	return ok && !item.expired(c.now()), nil
}

func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purge()
		}
	}
}

func (c *MemoryCache) purge() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for key, item := range c.data {
		if item.expired(now) {
			delete(c.data, key)
		}
	}
}

// Size returns the current number of items, expired or not
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]cacheItem)
}

// Close stops the sweeper. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}
