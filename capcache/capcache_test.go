package capcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minorsecond/axterm-core/axclock"
	"github.com/minorsecond/axterm-core/axdp"
	"github.com/minorsecond/axterm-core/callsign"
)

func TestCachePutGetRoundTrip(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	c := New(DefaultMaxEntries, DefaultTTL, clk)
	peer := callsign.New("KA1ABC", 0)
	caps := axdp.Capabilities{MaxProtocolVersion: 1, MaxChunkSize: 220}

	c.Put(peer, caps)
	got, ok := c.Get(peer)
	require.True(t, ok)
	assert.Equal(t, caps, got)
}

func TestCacheExpiresPastTTL(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	c := New(DefaultMaxEntries, time.Minute, clk)
	peer := callsign.New("KA1ABC", 0)
	c.Put(peer, axdp.Capabilities{})

	clk.Advance(2 * time.Minute)
	_, ok := c.Get(peer)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "an expired lookup evicts the entry")
}

func TestCacheEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	c := New(2, time.Hour, clk)
	a := callsign.New("AAAAAA", 0)
	b := callsign.New("BBBBBB", 0)
	cc := callsign.New("CCCCCC", 0)

	c.Put(a, axdp.Capabilities{MaxChunkSize: 1})
	c.Put(b, axdp.Capabilities{MaxChunkSize: 2})
	// Touch a so b becomes least-recently-used.
	_, _ = c.Get(a)
	c.Put(cc, axdp.Capabilities{MaxChunkSize: 3})

	_, ok := c.Get(b)
	assert.False(t, ok, "b should have been evicted as LRU")
	_, ok = c.Get(a)
	assert.True(t, ok)
	_, ok = c.Get(cc)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCacheFreshnessDecaysTowardZero(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	c := New(DefaultMaxEntries, 10*time.Minute, clk)
	peer := callsign.New("KA1ABC", 0)
	c.Put(peer, axdp.Capabilities{})

	f0, ok := c.Freshness(peer)
	require.True(t, ok)
	assert.InDelta(t, 1.0, f0, 0.001)

	clk.Advance(5 * time.Minute)
	f1, ok := c.Freshness(peer)
	require.True(t, ok)
	assert.InDelta(t, 0.5, f1, 0.001)
}

func TestCacheGetUnknownPeer(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	c := New(DefaultMaxEntries, DefaultTTL, clk)
	_, ok := c.Get(callsign.New("ZZZZZZ", 0))
	assert.False(t, ok)
}
