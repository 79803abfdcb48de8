package gitx

import (
	"sync"
	"time"
)

// DiffCache memoizes per-project diff stats for a short TTL so the viewer
// payload can decorate every project without a git invocation per poll.
// Refreshes happen off the poll's critical path; readers get the cached
// value (possibly stale) immediately.
type DiffCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]diffEntry
	// compute is swappable for tests.
	compute func(dir string) DiffStats
}

type diffEntry struct {
	stats DiffStats
	at    time.Time
}

func NewDiffCache(ttl time.Duration) *DiffCache {
	return &DiffCache{
		ttl:     ttl,
		entries: make(map[string]diffEntry),
		compute: Diff,
	}
}

// Get returns the cached stats for a directory and whether they are still
// fresh. A miss returns zero stats and false.
func (c *DiffCache) Get(dir string) (DiffStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[dir]
	if !ok {
		return DiffStats{}, false
	}
	return e.stats, time.Since(e.at) < c.ttl
}

// Refresh recomputes stats for a directory and stores them.
func (c *DiffCache) Refresh(dir string) DiffStats {
	c.mu.Lock()
	compute := c.compute
	c.mu.Unlock()

	stats := compute(dir)

	c.mu.Lock()
	c.entries[dir] = diffEntry{stats: stats, at: time.Now()}
	c.mu.Unlock()
	return stats
}

// Put stores externally computed stats. Callers that gate publication on a
// generation token compute first, check the token, then Put.
func (c *DiffCache) Put(dir string, stats DiffStats) {
	c.mu.Lock()
	c.entries[dir] = diffEntry{stats: stats, at: time.Now()}
	c.mu.Unlock()
}

// StaleDirs returns the subset of dirs whose cached stats are missing or
// past the TTL.
func (c *DiffCache) StaleDirs(dirs []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for _, dir := range dirs {
		e, ok := c.entries[dir]
		if !ok || time.Since(e.at) >= c.ttl {
			out = append(out, dir)
		}
	}
	return out
}
