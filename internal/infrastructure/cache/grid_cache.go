package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// maxEntries bounds the cache. A full cache sweeps expired entries on Set and, when every entry
// is still fresh, evicts the one closest to expiry.
const maxEntries = 4096

// GridCache keeps rendered contribution grids for a short TTL, keyed by request URL.
// The URL carries the date range, so a new day or a new width never hits a stale entry.
type GridCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]gridEntry
}

type gridEntry struct {
	html      string
	expiresAt time.Time
}

// NewGridCache creates a cache whose entries live for ttl. A non-positive ttl caches nothing.
func NewGridCache(ttl time.Duration) *GridCache {
	return &GridCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]gridEntry),
	}
}

// Get returns the cached grid for key while it is still fresh.
func (c *GridCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.html, true
}

// Set stores html under key for the cache TTL.
func (c *GridCache) Set(key, html string) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= maxEntries {
		if c.purgeLocked() == 0 {
			c.evictOldestLocked()
		}
	}
	c.entries[key] = gridEntry{html: html, expiresAt: c.now().Add(c.ttl)}
}

// Purge drops expired entries and reports how many were removed.
func (c *GridCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked()
}

func (c *GridCache) purgeLocked() int {
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *GridCache) evictOldestLocked() {
	var (
		oldest    string
		oldestAt  time.Time
		haveEntry bool
	)
	for key, entry := range c.entries {
		if !haveEntry || entry.expiresAt.Before(oldestAt) {
			oldest, oldestAt, haveEntry = key, entry.expiresAt, true
		}
	}
	if haveEntry {
		delete(c.entries, oldest)
	}
}

// Len reports the number of stored entries, fresh or not.
func (c *GridCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RunJanitor purges expired entries every interval until ctx is done.
func (c *GridCache) RunJanitor(ctx context.Context, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Purge(); removed > 0 {
				log.Debug("Purged expired contribution grids", "removed", removed, "remaining", c.Len())
			}
		}
	}
}
