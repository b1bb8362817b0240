package app

import (
	"sync"
	"time"

	"github.com/fd1az/arbitrage-bot/business/marketdata/domain"
)

// BookCache is the bounded map of freshest top-of-book state per (venue,
// instrument). The only writer for a given entry is that venue's stream
// reader task; readers are the Detector (hot path) and Executor (fallback
// path). Each entry carries its own mutex so one instrument's write never
// blocks a read of another - this is the "fine-grained lock per entry"
// discipline the concurrency model calls for instead of a single cache-wide
// lock.
type BookCache struct {
	freshness time.Duration

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	mu   sync.RWMutex
	book domain.OrderBook
}

// NewBookCache builds a BookCache with the given freshness TTL (§4.2 default
// 500ms).
func NewBookCache(freshness time.Duration) *BookCache {
	return &BookCache{freshness: freshness, entries: make(map[string]*cacheEntry)}
}

func key(venue domain.Venue, instrumentID string) string {
	return string(venue) + ":" + instrumentID
}

// Apply merges an update into the cache, discarding it if its Seq does not
// strictly increase the existing entry's Seq (out-of-order delta). Snapshots
// and updates with Seq 0 are always applied.
func (c *BookCache) Apply(u domain.BookUpdate) {
	k := key(u.Venue, u.InstrumentID)

	c.mu.Lock()
	e, ok := c.entries[k]
	if !ok {
		e = &cacheEntry{}
		c.entries[k] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !u.Snapshot && u.Seq != 0 && u.Seq <= e.book.Seq {
		return
	}
	e.book = domain.OrderBook{
		Venue:        u.Venue,
		InstrumentID: u.InstrumentID,
		YesAsks:      u.YesAsks,
		NoAsks:       u.NoAsks,
		UpdatedAt:    u.ReceivedAt,
		Seq:          u.Seq,
	}
}

// ErrStale-equivalent result: Get returns (book, false) both when the entry
// doesn't exist and when it exceeds the freshness TTL - the hot path treats
// both as "no signal" identically.
func (c *BookCache) Get(venue domain.Venue, instrumentID string, now time.Time) (domain.OrderBook, bool) {
	k := key(venue, instrumentID)

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return domain.OrderBook{}, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.book.UpdatedAt.IsZero() || e.book.Age(now) > c.freshness {
		return domain.OrderBook{}, false
	}
	return e.book, true
}

// Evict removes the cached entry for an instrument, called by the Controller
// when it unsubscribes a pair whose resolution time has passed.
func (c *BookCache) Evict(venue domain.Venue, instrumentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(venue, instrumentID))
}
