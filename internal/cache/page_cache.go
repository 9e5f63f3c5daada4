// Package cache provides the buffered page cache that fronts a container's
// DiskMedium (spec.md §2, §4.4): a bounded cache keyed by (sub-file, block
// index) that avoids re-reading and re-verifying a block's checksum
// trailer on every Session.Load. PressureAwareCache additionally reacts to
// a MemoryPool's collection events so clean, unpinned pages are shed
// before the pool is forced to reject an allocation.
//
// Every entry is one page of the container's fixed block size, which
// shapes the whole design: eviction is a clock (second-chance) sweep over
// a flat ring rather than a linked LRU list, because all entries cost the
// same and approximate recency is enough for sibling-chain scans whose
// reuse pattern is "the handful of nodes on the current root-to-leaf
// path". Pinning is a per-entry counter, and a dropped-while-pinned page
// needs no deferred-free bookkeeping: the Pin token keeps the slice alive
// and the collector reclaims it when the last holder lets go.
package cache

import "sync"

// PageKey uniquely identifies a cached page: a subfile.Pool fileID paired
// with the block index within that sub-file (internal/diskio.Session.key).
type PageKey struct {
	SubFileID  uint64
	BlockIndex uint64
}

type entry struct {
	key  PageKey
	page []byte
	ref  bool // second-chance bit, set on every hit
	pins int
	slot int // position in the clock ring, -1 once removed
}

// Pin keeps one page resident (immune to eviction) until Unpin. A Pin
// whose page could not be admitted to the cache (everything else was
// pinned) still carries the page bytes; Unpin on it is a no-op.
type Pin struct {
	e    *entry
	page []byte
}

// Page returns the pinned page bytes.
func (p *Pin) Page() []byte { return p.page }

// PageCache is a byte-bounded page cache with clock eviction. Safe for
// concurrent use.
type PageCache struct {
	mu    sync.Mutex
	limit uint64
	used  uint64
	table map[PageKey]*entry
	ring  []*entry
	hand  int

	hits   uint64
	misses uint64
}

// NewPageCache creates a cache bounded to roughly limit bytes of page
// data. The bound is advisory in one direction only: pinned pages are
// never evicted, so a burst of pins can hold the cache over limit until
// they unpin.
func NewPageCache(limit uint64) *PageCache {
	return &PageCache{
		limit: limit,
		table: make(map[PageKey]*entry),
	}
}

// Get returns the cached page for key, or ok=false on a miss. A hit marks
// the entry recently used for the clock sweep.
func (c *PageCache) Get(key PageKey) (page []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.table[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e.ref = true
	c.hits++
	return e.page, true
}

// Add caches page under key, replacing any previous content. Admission is
// best-effort: if room cannot be made because every resident page is
// pinned, the page is simply not cached.
func (c *PageCache) Add(key PageKey, page []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(key, page)
}

func (c *PageCache) addLocked(key PageKey, page []byte) *entry {
	if e, ok := c.table[key]; ok {
		c.used += uint64(len(page)) - uint64(len(e.page))
		e.page = page
		e.ref = true
		c.evictToLimitLocked()
		return e
	}
	if !c.roomForLocked(uint64(len(page))) {
		return nil
	}
	// A page earns its reference bit on first reuse, not at admission;
	// otherwise a scan of never-revisited pages is indistinguishable
	// from the hot set.
	e := &entry{key: key, page: page, slot: len(c.ring)}
	c.ring = append(c.ring, e)
	c.table[key] = e
	c.used += uint64(len(page))
	return e
}

// Pin caches page under key (or finds the resident copy) and pins it.
func (c *PageCache) Pin(key PageKey, page []byte) *Pin {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.table[key]
	if !ok {
		e = c.addLocked(key, page)
		if e == nil {
			// Cache full of pinned pages; hand the caller an
			// uncached pin rather than failing the read.
			return &Pin{page: page}
		}
	}
	e.pins++
	e.ref = true
	return &Pin{e: e, page: e.page}
}

// Unpin releases a Pin, making its page evictable again once no other
// pins remain.
func (c *PageCache) Unpin(p *Pin) {
	if p == nil || p.e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.e.pins > 0 {
		p.e.pins--
	}
	p.e = nil
}

// Drop removes key from the cache immediately, pinned or not. Existing Pin
// tokens for it stay valid (their slice is untouched); their Unpin becomes
// a no-op against the departed entry.
func (c *PageCache) Drop(key PageKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.table[key]; ok {
		c.removeLocked(e)
	}
}

// SetLimit changes the byte bound, evicting unpinned pages as needed.
func (c *PageCache) SetLimit(limit uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = limit
	c.evictToLimitLocked()
}

// Limit returns the current byte bound.
func (c *PageCache) Limit() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit
}

// UsedBytes returns the bytes of page data currently resident.
func (c *PageCache) UsedBytes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Len returns the number of resident pages.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table)
}

// Stats returns the cumulative hit and miss counts.
func (c *PageCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Close drops every resident page. Outstanding Pin tokens keep their
// slices; the cache itself holds nothing afterward.
func (c *PageCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = make(map[PageKey]*entry)
	c.ring = nil
	c.hand = 0
	c.used = 0
}

// roomForLocked sweeps the clock until charge fits under limit, returning
// false if every resident page is pinned and the charge still does not
// fit.
func (c *PageCache) roomForLocked(charge uint64) bool {
	if charge > c.limit {
		return false
	}
	// Two full revolutions bound the sweep: the first may only clear
	// second-chance bits, the second must find a victim or prove that
	// everything left is pinned.
	for spins := 2 * len(c.ring); c.used+charge > c.limit; spins-- {
		if spins <= 0 || len(c.ring) == 0 {
			return false
		}
		if c.hand >= len(c.ring) {
			c.hand = 0
		}
		e := c.ring[c.hand]
		switch {
		case e.pins > 0:
			c.hand++
		case e.ref:
			e.ref = false
			c.hand++
		default:
			c.removeLocked(e)
		}
	}
	return true
}

func (c *PageCache) evictToLimitLocked() {
	if c.used > c.limit {
		c.roomForLocked(0)
	}
}

// removeLocked unlinks e from the table and the ring (swap with the last
// slot, so removal never shifts the whole ring).
func (c *PageCache) removeLocked(e *entry) {
	delete(c.table, e.key)
	last := len(c.ring) - 1
	moved := c.ring[last]
	c.ring[e.slot] = moved
	moved.slot = e.slot
	c.ring = c.ring[:last]
	if c.hand > last {
		c.hand = 0
	}
	c.used -= uint64(len(e.page))
	e.slot = -1
}
