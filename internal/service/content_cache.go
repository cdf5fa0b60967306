package service

import (
	"sync"
	"time"

	"github.com/shwanortho/site/internal/locale"
)

// DictionaryCache keeps the last resolution per locale for a bounded time.
// It is owned by ContentService and cleared by the change subscription.
type DictionaryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[locale.Locale]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	resolution Resolution
	expires    time.Time
}

// NewDictionaryCache returns a cache. ttl <= 0 disables caching.
func NewDictionaryCache(ttl time.Duration) *DictionaryCache {
	return &DictionaryCache{
		ttl:     ttl,
		entries: make(map[locale.Locale]cacheEntry),
		now:     time.Now,
	}
}

// Get returns a live entry for l.
func (c *DictionaryCache) Get(l locale.Locale) (Resolution, bool) {
	if c == nil || c.ttl <= 0 {
		return Resolution{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[l]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expires) {
		return Resolution{}, false
	}
	return entry.resolution, true
}

// Set stores r under l.
func (c *DictionaryCache) Set(l locale.Locale, r Resolution) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[l] = cacheEntry{resolution: r, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops the given locales, or everything when none are given.
func (c *DictionaryCache) Invalidate(locales ...locale.Locale) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(locales) == 0 {
		c.entries = make(map[locale.Locale]cacheEntry)
		return
	}
	for _, l := range locales {
		delete(c.entries, l)
	}
}

// Len returns the number of entries, expired ones included.
func (c *DictionaryCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
