package calendar

import (
	"fmt"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a cached event range stays fresh.
const DefaultCacheTTL = 5 * time.Minute

// EventCache is an in-memory TTL cache of event ranges keyed by user
// and requested time range.
//
// Each user carries a generation counter that is bumped on
// invalidation. A read records the generation before going to the
// provider, and the corresponding write is dropped if the generation
// moved in between, so a concurrent invalidation is never undone by a
// stale fetch.
type EventCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
	gens    map[string]uint64
}

type cacheEntry struct {
	userID    string
	events    []Event
	fetchedAt time.Time
}

// NewEventCache creates a cache with the given TTL. A non-positive TTL
// falls back to DefaultCacheTTL.
func NewEventCache(ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &EventCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
	}
}

// SetClock replaces the cache's time source. Intended for tests.
func (c *EventCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func cacheKey(userID string, start, end time.Time) string {
	return fmt.Sprintf("%s|%d|%d", userID, start.UnixNano(), end.UnixNano())
}

// Get returns the cached events for the exact range, if fresh. Expired
// entries are evicted on the way out.
func (c *EventCache) Get(userID string, start, end time.Time) ([]Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(userID, start, end)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.events, true
}

// Generation returns the user's current invalidation generation. Record
// it before fetching and pass it to Put.
func (c *EventCache) Generation(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[userID]
}

// Put stores a fetched range unless the user's generation moved since
// gen was recorded, in which case the stale result is discarded.
func (c *EventCache) Put(userID string, start, end time.Time, events []Event, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		return
	}
	c.entries[cacheKey(userID, start, end)] = cacheEntry{
		userID:    userID,
		events:    events,
		fetchedAt: c.now(),
	}
}

// Invalidate drops every cached range for the user and bumps their
// generation so in-flight fetches cannot repopulate stale data.
func (c *EventCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[userID]++
	for key, entry := range c.entries {
		if entry.userID == userID {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of live entries. Intended for tests.
func (c *EventCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
