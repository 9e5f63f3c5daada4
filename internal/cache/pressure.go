package cache

import "github.com/snapdb/snapdb/internal/rqueue"

// PressureAwareCache wraps a PageCache so it can subscribe to a
// MemoryPool's collection events (internal/mempool.Pool.Events) and shed
// clean pages under memory pressure rather than waiting to be pushed out
// one insert at a time. This is the "page cache that should shed clean
// pages under pressure" spec.md §4.1 anticipates downstream of MemoryPool.
type PressureAwareCache struct {
	*PageCache

	steadyLimit uint64
}

// NewPressureAwareCache creates a cache with the given steady-state byte
// limit. Call Subscribe to start reacting to collection events.
func NewPressureAwareCache(limit uint64) *PressureAwareCache {
	return &PressureAwareCache{
		PageCache:   NewPageCache(limit),
		steadyLimit: limit,
	}
}

// OnCollect implements rqueue.Subscriber. Emergency mode halves the
// cache's effective limit (evicting unpinned pages down to the new
// ceiling); Critical mode drops it to a sliver just large enough to avoid
// thrashing a single hot page; Normal restores the steady-state limit.
func (c *PressureAwareCache) OnCollect(mode rqueue.CollectionMode) {
	switch mode {
	case rqueue.CollectionEmergency:
		c.SetLimit(c.steadyLimit / 2)
	case rqueue.CollectionCritical:
		c.SetLimit(c.steadyLimit / 8)
	default:
		c.SetLimit(c.steadyLimit)
	}
}

// Subscribe registers c with events, returning an unsubscribe function.
// The registration is weak: c stops receiving events once it is no longer
// otherwise referenced, without needing an explicit unsubscribe call.
func (c *PressureAwareCache) Subscribe(events *rqueue.WeakSubscriberList) (unsubscribe func()) {
	return rqueue.Subscribe[*PressureAwareCache](events, c)
}
