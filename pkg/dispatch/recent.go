package dispatch

import (
	"sync"
	"time"

	"recurry/pkg/host"
)

// recentCache keeps the last handled update context per user for a bounded
// time. It is swept opportunistically on access; no background goroutine.
type recentCache struct {
	ttl time.Duration
	max int
	now func() time.Time

	mu      sync.Mutex
	entries map[int64]recentEntry
}

type recentEntry struct {
	hc   host.Context
	seen time.Time
}

func newRecentCache(ttl time.Duration, max int) *recentCache {
	return &recentCache{
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		entries: make(map[int64]recentEntry),
	}
}

func (c *recentCache) put(userID int64, hc host.Context) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[userID]; !ok && len(c.entries) >= c.max {
		c.sweep(now)
		if len(c.entries) >= c.max {
			c.evictOldest()
		}
	}
	c.entries[userID] = recentEntry{hc: hc, seen: now}
}

func (c *recentCache) get(userID int64) (host.Context, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	if now.Sub(e.seen) > c.ttl {
		delete(c.entries, userID)
		return nil, false
	}
	return e.hc, true
}

func (c *recentCache) sweep(now time.Time) {
	for id, e := range c.entries {
		if now.Sub(e.seen) > c.ttl {
			delete(c.entries, id)
		}
	}
}

func (c *recentCache) evictOldest() {
	var oldest int64
	var oldestSeen time.Time
	first := true
	for id, e := range c.entries {
		if first || e.seen.Before(oldestSeen) {
			oldest, oldestSeen, first = id, e.seen, false
		}
	}
	if !first {
		delete(c.entries, oldest)
	}
}
