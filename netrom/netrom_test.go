package netrom

import (
	"testing"
	"time"

	"github.com/minorsecond/axterm-core/axclock"
	"github.com/minorsecond/axterm-core/callsign"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBroadcastRoundTrip(t *testing.T) {
	entries := []BroadcastEntry{
		{Destination: callsign.New("W1ABC", 0), Alias: "NODE1", BestNeighborCall: callsign.New("AF0AJ", 0), Quality: 200},
		{Destination: callsign.New("N0CAL", 0), Alias: "NODE2", BestNeighborCall: callsign.New("AF0AJ", 0), Quality: 150},
	}
	wire := EncodeBroadcast(entries)
	assert.Equal(t, byte(BroadcastSignature), wire[0])

	got, isBroadcast, err := ParseBroadcast(wire)
	require.NoError(t, err)
	require.True(t, isBroadcast)
	require.Len(t, got, 2)
	assert.Equal(t, entries[0].Destination, got[0].Destination)
	assert.Equal(t, "NODE1", got[0].Alias)
	assert.Equal(t, 200, got[0].Quality)
	assert.Equal(t, entries[1].Destination, got[1].Destination)
}

func TestParseBroadcastRejectsMissingSignature(t *testing.T) {
	_, isBroadcast, err := ParseBroadcast([]byte{0x01, 0x02})
	assert.NoError(t, err)
	assert.False(t, isBroadcast)
}

func TestParseBroadcastFlagsTrailingGarbage(t *testing.T) {
	wire := EncodeBroadcast([]BroadcastEntry{{Destination: callsign.New("A", 0), BestNeighborCall: callsign.New("B", 0), Quality: 1}})
	wire = append(wire, 0x01, 0x02)
	entries, isBroadcast, err := ParseBroadcast(wire)
	assert.True(t, isBroadcast)
	assert.Error(t, err)
	assert.Len(t, entries, 1)
}

func TestObserveBroadcastSeedS6(t *testing.T) {
	clk := axclock.NewFake(time.Unix(1_700_000_000, 0))
	local := callsign.New("W0TST", 0)
	obs := New(local, clk)

	sender := callsign.New("AF0AJ", 0)
	entries := []BroadcastEntry{
		{Destination: callsign.New("W1ABC", 0), Alias: "NODE1", BestNeighborCall: sender, Quality: 200},
		{Destination: callsign.New("N0CAL", 0), Alias: "NODE2", BestNeighborCall: sender, Quality: 150},
	}
	obs.ObserveBroadcast(sender, entries)

	neighbors, routes := obs.View(ModeHybrid)
	require.Len(t, neighbors, 1)
	assert.Equal(t, sender, neighbors[0].Call)

	require.Len(t, routes, 2)
	byDest := map[string]Route{}
	for _, r := range routes {
		byDest[r.Destination.String()] = r
	}
	w1abc, ok := byDest["W1ABC"]
	require.True(t, ok)
	assert.Equal(t, SourceBroadcast, w1abc.SourceType)
	assert.Greater(t, w1abc.Quality, 0)

	n0cal, ok := byDest["N0CAL"]
	require.True(t, ok)
	assert.Equal(t, SourceBroadcast, n0cal.SourceType)
	assert.Greater(t, n0cal.Quality, 0)
}

func TestObserveBroadcastSkipsLocalDestination(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	local := callsign.New("W0TST", 0)
	obs := New(local, clk)
	sender := callsign.New("AF0AJ", 0)
	obs.ObserveBroadcast(sender, []BroadcastEntry{
		{Destination: local, BestNeighborCall: sender, Quality: 200},
	})
	_, routes := obs.View(ModeHybrid)
	assert.Empty(t, routes)
}

func TestObserveThirdPartyInfersRoute(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	local := callsign.New("W0TST", 0)
	obs := New(local, clk)

	a := callsign.New("KA1ABC", 0)
	c := callsign.New("NODES", 0)
	digi := callsign.New("DIGI1", 0)

	obs.ObserveThirdParty(a, c, []callsign.Address{digi})

	route, ok := obs.Route(a)
	require.True(t, ok)
	assert.Equal(t, SourceInferred, route.SourceType)
	assert.Equal(t, digi, route.Origin)
	assert.Less(t, route.Quality, DefaultUnknownNeighborQuality)
}

func TestObserveThirdPartyIgnoresLocalEndpoints(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	local := callsign.New("W0TST", 0)
	obs := New(local, clk)
	other := callsign.New("N0CALL", 0)

	obs.ObserveThirdParty(local, other, nil)
	obs.ObserveThirdParty(other, local, nil)

	_, routes := obs.View(ModeHybrid)
	assert.Empty(t, routes)
}

func TestRoutingModeFiltersBySourceType(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	local := callsign.New("W0TST", 0)
	obs := New(local, clk)

	sender := callsign.New("AF0AJ", 0)
	obs.ObserveBroadcast(sender, []BroadcastEntry{
		{Destination: callsign.New("W1ABC", 0), BestNeighborCall: sender, Quality: 200},
	})
	obs.ObserveThirdParty(callsign.New("KA1XYZ", 0), callsign.New("NODES", 0), nil)

	_, classicRoutes := obs.View(ModeClassic)
	require.Len(t, classicRoutes, 1)
	assert.Equal(t, "W1ABC", classicRoutes[0].Destination.String())

	_, inferenceRoutes := obs.View(ModeInference)
	require.Len(t, inferenceRoutes, 1)
	assert.Equal(t, "KA1XYZ", inferenceRoutes[0].Destination.String())

	_, hybridRoutes := obs.View(ModeHybrid)
	assert.Len(t, hybridRoutes, 2)
}

func TestUpdateRouteIfBetterPrefersHigherQuality(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	local := callsign.New("W0TST", 0)
	obs := New(local, clk)

	weak := callsign.New("WEAKNODE", 0)
	strong := callsign.New("STRONGND", 0)
	dest := callsign.New("DEST", 0)

	obs.ObserveBroadcast(weak, []BroadcastEntry{{Destination: dest, BestNeighborCall: weak, Quality: 50}})
	obs.ObserveBroadcast(strong, []BroadcastEntry{{Destination: dest, BestNeighborCall: strong, Quality: 220}})

	route, ok := obs.Route(dest)
	require.True(t, ok)
	assert.Equal(t, 220, route.Quality)
	assert.Equal(t, strong, route.Origin)

	obs.ObserveBroadcast(weak, []BroadcastEntry{{Destination: dest, BestNeighborCall: weak, Quality: 50}})
	route, _ = obs.Route(dest)
	assert.Equal(t, 220, route.Quality, "a worse route must never displace a better one")
}

func TestOriginIntervalEMAAndDuplicateGuard(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	local := callsign.New("W0TST", 0)
	obs := New(local, clk)
	sender := callsign.New("AF0AJ", 0)

	obs.ObserveBroadcast(sender, nil)
	clk.Advance(2 * time.Second) // inside guard window, ignored
	obs.ObserveBroadcast(sender, nil)
	_, established := obs.OriginInterval(sender)
	assert.False(t, established)

	// The ignored broadcast does not move the interval start, so the
	// first sample spans 2s+30s.
	clk.Advance(30 * time.Second)
	obs.ObserveBroadcast(sender, nil)
	interval, established := obs.OriginInterval(sender)
	require.True(t, established)
	assert.Equal(t, 32*time.Second, interval)

	// EMA: 0.3*30s + 0.7*32s.
	clk.Advance(30 * time.Second)
	obs.ObserveBroadcast(sender, nil)
	interval2, _ := obs.OriginInterval(sender)
	assert.Equal(t, 31400*time.Millisecond, interval2)
}

func TestIsOriginStaleAdaptive(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	local := callsign.New("W0TST", 0)
	obs := New(local, clk)
	sender := callsign.New("AF0AJ", 0)

	obs.ObserveBroadcast(sender, nil)
	clk.Advance(30 * time.Second)
	obs.ObserveBroadcast(sender, nil)

	assert.False(t, obs.IsOriginStale(sender, clk.Now().Add(60*time.Second)))
	assert.True(t, obs.IsOriginStale(sender, clk.Now().Add(100*time.Second)))
}

func TestTouchNeighborUpgradesInferredToBroadcast(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	local := callsign.New("W0TST", 0)
	obs := New(local, clk)
	station := callsign.New("KA1ABC", 0)

	obs.ObserveThirdParty(station, callsign.New("NODES", 0), nil)
	neighbors, _ := obs.View(ModeHybrid)
	require.Len(t, neighbors, 1)
	assert.Equal(t, SourceInferred, neighbors[0].SourceType)

	obs.ObserveBroadcast(station, nil)
	neighbors, _ = obs.View(ModeHybrid)
	require.Len(t, neighbors, 1)
	assert.Equal(t, SourceBroadcast, neighbors[0].SourceType)
}

func TestExportImportRoundTrip(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	local := callsign.New("W0TST", 0)
	obs := New(local, clk)
	sender := callsign.New("AF0AJ", 0)

	entries := []BroadcastEntry{
		{Destination: callsign.New("W1ABC", 0), Alias: "NODE1", BestNeighborCall: sender, Quality: 200},
	}
	obs.ObserveBroadcast(sender, entries)
	clk.Advance(30 * time.Second)
	obs.ObserveBroadcast(sender, entries)

	neighborExports := obs.ExportNeighbors()
	routeExports := obs.ExportRoutes()
	intervalExports := obs.ExportOriginIntervals()
	require.Len(t, neighborExports, 1)
	require.Len(t, routeExports, 1)
	require.Len(t, intervalExports, 1)

	restored := New(local, clk)
	restored.ImportNeighbors(neighborExports)
	restored.ImportRoutes(routeExports)
	restored.ImportOriginIntervals(intervalExports)

	neighbors, routes := restored.View(ModeHybrid)
	require.Len(t, neighbors, 1)
	require.Len(t, routes, 1)
	assert.Equal(t, sender, neighbors[0].Call)
	assert.Equal(t, 200, routes[0].Quality)

	interval, ok := restored.OriginInterval(sender)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, interval)
}

func TestImportNeighborsSkipsUnparseableCall(t *testing.T) {
	clk := axclock.NewFake(time.Unix(0, 0))
	obs := New(callsign.New("W0TST", 0), clk)
	obs.ImportNeighbors([]NeighborExport{{Call: "FOO-bar", Quality: 100}})
	neighbors, _ := obs.View(ModeHybrid)
	assert.Empty(t, neighbors)
}
