// Package cache stores full ranked result sets keyed by query fingerprint.
//
// The cache is purely in-memory and process-lifetime-scoped: it is a
// performance optimization, not a durability requirement, and is cleared on
// restart. Entries expire lazily after the TTL; an optional janitor reclaims
// memory for entries nobody asks for again.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/prepgenie/pyqsearch/internal/domain/search/candidate"
)

// DefaultTTL bounds result staleness when no TTL is configured.
const DefaultTTL = 5 * time.Minute

type entry struct {
	results   []candidate.Candidate
	createdAt time.Time
}

// ResultCache maps query fingerprints to full ranked result sets.
// Safe for concurrent use. Entries are replaced wholesale, never mutated in
// place, so a slice handed out by Get stays valid after a concurrent Put.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a result cache. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (c *ResultCache) WithClock(now func() time.Time) *ResultCache {
	c.now = now
	return c
}

// Get returns the cached result set for a fingerprint. An entry older than
// the TTL is treated as absent and evicted.
func (c *ResultCache) Get(fingerprint string) ([]candidate.Candidate, bool) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.expired(e, c.now()) {
		c.mu.Lock()
		// Re-check: a Put may have refreshed the entry since the read.
		if cur, ok := c.entries[fingerprint]; ok && c.expired(cur, c.now()) {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.results, true
}

// Put stores a freshly timestamped entry, unconditionally overwriting any
// existing one for the same fingerprint.
func (c *ResultCache) Put(fingerprint string, results []candidate.Candidate) {
	stored := make([]candidate.Candidate, len(results))
	copy(stored, results)

	c.mu.Lock()
	c.entries[fingerprint] = entry{results: stored, createdAt: c.now()}
	c.mu.Unlock()
}

// Len returns the number of physically present entries, expired or not.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep evicts all expired entries and reports how many were removed.
func (c *ResultCache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for fp, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, fp)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps expired entries on the given interval until ctx is
// done. Lazy expiration in Get remains the correctness mechanism; the
// janitor only bounds memory held by abandoned queries.
func (c *ResultCache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// An entry is stale at exactly createdAt+ttl.
func (c *ResultCache) expired(e entry, now time.Time) bool {
	return now.Sub(e.createdAt) >= c.ttl
}
