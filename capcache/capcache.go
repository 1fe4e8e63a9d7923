// Package capcache implements the per-peer AXDP capability cache (spec
// §3's "Capability record ... cached per peer with TTL" and SPEC_FULL
// §4.11): a small LRU-with-TTL table keyed by callsign.Address, holding
// the most recent Capabilities a peer advertised via PING/PONG/
// PEER_AXDP_ENABLED, expired using the decay package's TTL model (C8)
// rather than a bespoke staleness check.
package capcache

import (
	"container/list"
	"time"

	"github.com/minorsecond/axterm-core/axclock"
	"github.com/minorsecond/axterm-core/axdp"
	"github.com/minorsecond/axterm-core/callsign"
	"github.com/minorsecond/axterm-core/decay"
)

// DefaultMaxEntries bounds the cache regardless of how many distinct
// peers have ever been heard from, per spec's "small" qualifier.
const DefaultMaxEntries = 64

// DefaultTTL matches the other per-peer TTLs of §4.7.
const DefaultTTL = 15 * time.Minute

type entry struct {
	peer      callsign.Address
	caps      axdp.Capabilities
	updatedAt time.Time
}

// Cache is an LRU table of callsign.Address to axdp.Capabilities,
// bounded to maxEntries and expiring entries older than ttl.
type Cache struct {
	maxEntries int
	ttl        time.Duration
	clock      axclock.Clock
	ll         *list.List
	index      map[callsign.Address]*list.Element
}

// New returns an empty Cache. maxEntries <= 0 and ttl <= 0 fall back to
// DefaultMaxEntries/DefaultTTL.
func New(maxEntries int, ttl time.Duration, clock axclock.Clock) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		ll:         list.New(),
		index:      make(map[callsign.Address]*list.Element),
	}
}

// Put records caps as peer's most recently advertised capabilities,
// touching it as most-recently-used and evicting the least-recently-used
// entry if the cache is now over capacity.
func (c *Cache) Put(peer callsign.Address, caps axdp.Capabilities) {
	key := peer.Key()
	now := c.clock.Now()
	if el, ok := c.index[key]; ok {
		e := el.Value.(*entry)
		e.caps = caps
		e.updatedAt = now
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&entry{peer: key, caps: caps, updatedAt: now})
	c.index[key] = el
	if c.ll.Len() > c.maxEntries {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.index, oldest.Value.(*entry).peer)
	}
}

// Get returns peer's cached capabilities, touching the entry as
// most-recently-used. ok is false if nothing was ever cached for peer,
// or the cached entry has decayed past ttl; an expired entry is evicted
// on lookup.
func (c *Cache) Get(peer callsign.Address) (caps axdp.Capabilities, ok bool) {
	key := peer.Key()
	el, found := c.index[key]
	if !found {
		return axdp.Capabilities{}, false
	}
	e := el.Value.(*entry)
	now := c.clock.Now()
	if decay.IsStale(e.updatedAt, c.ttl, now) {
		c.ll.Remove(el)
		delete(c.index, key)
		return axdp.Capabilities{}, false
	}
	c.ll.MoveToFront(el)
	return e.caps, true
}

// Freshness returns the decay freshness (1.0 just-cached, 0.0 at ttl) of
// peer's cached entry, if any.
func (c *Cache) Freshness(peer callsign.Address) (float64, bool) {
	el, ok := c.index[peer.Key()]
	if !ok {
		return 0, false
	}
	e := el.Value.(*entry)
	return decay.Freshness(e.updatedAt, c.ttl, c.clock.Now()), true
}

// Len returns the number of entries currently tracked, including any
// not yet evicted past their TTL.
func (c *Cache) Len() int {
	return c.ll.Len()
}
