package mediaproxy

import (
	"sync"
	"time"

	"github.com/suteetoe/scouting-service/prometheus"
)

type entry struct {
	signedURL string
	etag      string
	expiresAt time.Time
}

// cache maps "tenantId:path" to the last signed URL issued for it. It is
// process-local; other instances hold their own copies.
type cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func newCache(now func() time.Time) *cache {
	return &cache{entries: make(map[string]*entry), now: now}
}

// fresh returns the entry for key if more than margin remains before it
// expires.
func (c *cache) fresh(key string, margin time.Duration) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Add(margin).Before(e.expiresAt) {
		return entry{}, false
	}
	return *e, true
}

func (c *cache) put(key string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	c.entries[key] = &e
	prometheus.SetSignedURLCacheEntries(len(c.entries))
}

// setETag records the etag for key if the entry still carries signedURL.
func (c *cache) setETag(key, signedURL, etag string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.signedURL == signedURL {
		e.etag = etag
	}
}

func (c *cache) evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	prometheus.SetSignedURLCacheEntries(len(c.entries))
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *cache) sweepLocked() {
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
