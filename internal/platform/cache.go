package platform

import (
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

const (
	cacheKeyThermal = "thermal"
	cacheKeyPower   = "power"
)

type cacheEntry struct {
	value     interface{}
	updatedAt time.Time
}

// readCache keeps the last successful result of a read for a limited time,
// so multiple control loops polling the same tool do not spawn a process each.
type readCache struct {
	entries cmap.ConcurrentMap[string, cacheEntry]
	now     func() time.Time
}

func newReadCache(now func() time.Time) *readCache {
	return &readCache{
		entries: cmap.New[cacheEntry](),
		now:     now,
	}
}

func (c *readCache) invalidate(keys ...string) {
	for _, key := range keys {
		c.entries.Remove(key)
	}
}

// cachedRead returns the cached value for key if it is younger than ttl,
// otherwise it calls load and caches a successful result. Errors are never cached.
func cachedRead[T any](c *readCache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if entry, ok := c.entries.Get(key); ok && ttl > 0 && c.now().Sub(entry.updatedAt) < ttl {
		if value, ok := entry.value.(T); ok {
			return value, nil
		}
	}

	value, err := load()
	if err != nil {
		return value, err
	}
	c.entries.Set(key, cacheEntry{value: value, updatedAt: c.now()})
	return value, nil
}
