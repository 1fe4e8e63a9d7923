package ingress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minorsecond/axterm-core/ax25"
	"github.com/minorsecond/axterm-core/axclock"
	"github.com/minorsecond/axterm-core/axconfig"
	"github.com/minorsecond/axterm-core/axdp"
	"github.com/minorsecond/axterm-core/callsign"
	"github.com/minorsecond/axterm-core/netrom"
	"github.com/minorsecond/axterm-core/session"
)

type loopbackSink struct {
	frames [][]byte
}

func (s *loopbackSink) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	s.frames = append(s.frames, cp)
	return len(p), nil
}

func newTestPipeline(t *testing.T, local callsign.Address) (*Pipeline, *loopbackSink) {
	t.Helper()
	clock := axclock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := Context{Clock: clock, Random: axclock.NewFakeRandom(0)}
	sink := &loopbackSink{}
	p := New(ctx, axconfig.DefaultConfig(), local, sink, KISSDedup{})
	return p, sink
}

func TestPipelineAcceptsIncomingSABM(t *testing.T) {
	local := callsign.New("W0TST", 0)
	remote := callsign.New("N0CALL", 0)
	p, sink := newTestPipeline(t, local)

	var connected bool
	p.OnSession = func(key session.Key, state session.State, reason string) {
		if state == session.StateConnected {
			connected = true
		}
	}

	raw := ax25.EncodeU(remote, local, nil, ax25.USABM, false)
	p.Ingest(0, wrapKiss(raw))

	assert.True(t, connected)
	require.Len(t, sink.frames, 1)
}

func TestPipelineRoutesConnectedChatThroughReassembler(t *testing.T) {
	local := callsign.New("W0TST", 0)
	remote := callsign.New("N0CALL", 0)
	p, _ := newTestPipeline(t, local)

	var chatReceived []byte
	p.OnTransfer = func(key session.Key, kind string, detail any) {
		if kind == "chat" {
			chatReceived = detail.([]byte)
		}
	}

	sabm := ax25.EncodeU(remote, local, nil, ax25.USABM, false)
	p.Ingest(0, wrapKiss(sabm))

	wire := axdp.Encode(axdp.Message{Type: axdp.TypeChat, Payload: []byte("hello world")})
	iFrame := ax25.EncodeI(remote, local, nil, 0, 0, false, pidAXDP, wire)
	p.Ingest(0, wrapKiss(iFrame))

	assert.Equal(t, []byte("hello world"), chatReceived)
}

func TestPipelineUIFrameBypassesSessionFSM(t *testing.T) {
	local := callsign.New("W0TST", 0)
	remote := callsign.New("N0CALL", 0)
	p, _ := newTestPipeline(t, local)

	var raw []byte
	p.OnRawDisplay = func(key session.Key, data []byte) { raw = data }

	ui := ax25.EncodeUI(remote, local, nil, 0xF0, []byte("plain text"))
	p.Ingest(0, wrapKiss(ui))

	assert.Equal(t, []byte("plain text"), raw)
	assert.Empty(t, p.sessions, "a UI frame must never create a connected-mode session")
}

func TestPipelineObservesNetRomBroadcastSeedS6(t *testing.T) {
	local := callsign.New("W0TST", 0)
	sender := callsign.New("AF0AJ", 0)
	p, _ := newTestPipeline(t, local)

	var routingEvents int
	p.OnRouting = func(event string, call callsign.Address) { routingEvents++ }

	entries := []netrom.BroadcastEntry{
		{Destination: callsign.New("W1ABC", 0), Alias: "NODE1", BestNeighborCall: sender, Quality: 200},
		{Destination: callsign.New("N0CAL", 0), Alias: "NODE2", BestNeighborCall: sender, Quality: 150},
	}
	payload := netrom.EncodeBroadcast(entries)
	pid := byte(netrom.PID)
	nodesAddr := callsign.New("NODES", 0)
	raw := ax25.EncodeUI(sender, nodesAddr, nil, pid, payload)
	p.Ingest(0, wrapKiss(raw))

	assert.Equal(t, 1, routingEvents)
	neighbors, routes := p.Routing().View(netrom.ModeHybrid)
	assert.Len(t, neighbors, 1)
	assert.Len(t, routes, 2)
}

func TestPipelineThirdPartyTrafficInfersRouteWithoutCreatingSession(t *testing.T) {
	local := callsign.New("W0TST", 0)
	a := callsign.New("KA1ABC", 0)
	b := callsign.New("KB2DEF", 0)
	p, _ := newTestPipeline(t, local)

	ui := ax25.EncodeUI(a, b, nil, 0xF0, []byte("overheard"))
	p.Ingest(0, wrapKiss(ui))

	_, ok := p.Routing().Route(a)
	assert.True(t, ok)
	assert.Empty(t, p.sessions)
}

func TestAGWPEDedupSuppressesByteIdenticalWithinWindow(t *testing.T) {
	d := NewAGWPEDedup()
	from := callsign.New("KA1ABC", 0)
	to := callsign.New("KB2DEF", 0)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, d.IsDuplicate(from, to, []byte("x"), now))
	assert.True(t, d.IsDuplicate(from, to, []byte("x"), now.Add(10*time.Millisecond)))
	assert.False(t, d.IsDuplicate(from, to, []byte("x"), now.Add(time.Second)))
}

func TestKISSDedupNeverReportsDuplicate(t *testing.T) {
	d := KISSDedup{}
	from := callsign.New("KA1ABC", 0)
	to := callsign.New("KB2DEF", 0)
	now := time.Now()
	assert.False(t, d.IsDuplicate(from, to, []byte("x"), now))
	assert.False(t, d.IsDuplicate(from, to, []byte("x"), now))
}

func TestPipelineSnapshotRoundTrip(t *testing.T) {
	local := callsign.New("W0TST", 0)
	sender := callsign.New("AF0AJ", 0)
	p, _ := newTestPipeline(t, local)

	entries := []netrom.BroadcastEntry{
		{Destination: callsign.New("W1ABC", 0), Alias: "NODE1", BestNeighborCall: sender, Quality: 200},
	}
	payload := netrom.EncodeBroadcast(entries)
	raw := ax25.EncodeUI(sender, callsign.New("NODES", 0), nil, byte(netrom.PID), payload)
	p.Ingest(0, wrapKiss(raw))
	p.quality.Observe(sender, local, false)

	snap := p.ExportSnapshot()
	require.NotEmpty(t, snap.Neighbors)
	require.NotEmpty(t, snap.Routes)
	require.NotEmpty(t, snap.LinkStats)

	p2, _ := newTestPipeline(t, local)
	p2.ImportSnapshot(snap)

	neighbors, routes := p2.Routing().View(netrom.ModeHybrid)
	assert.Len(t, neighbors, 1)
	assert.Len(t, routes, 1)
	assert.Equal(t, 200, routes[0].Quality)
	assert.Greater(t, p2.Quality().Quality(sender, local), 0)
}

func TestPipelineCachesCapabilitiesFromPong(t *testing.T) {
	local := callsign.New("W0TST", 0)
	remote := callsign.New("N0CALL", 0)
	p, _ := newTestPipeline(t, local)

	sabm := ax25.EncodeU(remote, local, nil, ax25.USABM, false)
	p.Ingest(0, wrapKiss(sabm))

	caps := axdp.Capabilities{MaxProtocolVersion: 1, MaxChunkSize: 220, CompressionAlgs: []axdp.CompressionAlg{axdp.CompressionLZ4}}
	wire := axdp.Encode(axdp.Message{Type: axdp.TypePong, Caps: &caps})
	iFrame := ax25.EncodeI(remote, local, nil, 0, 0, false, pidAXDP, wire)
	p.Ingest(0, wrapKiss(iFrame))

	got, ok := p.Capabilities().Get(remote)
	require.True(t, ok)
	assert.Equal(t, caps, got)
}

// wrapKiss is a test helper encoding a raw AX.25 frame as a port-0 KISS
// data frame, mirroring what a real TNC would send on the wire.
func wrapKiss(raw []byte) []byte {
	out := []byte{0xC0, 0x00}
	for _, b := range raw {
		switch b {
		case 0xC0:
			out = append(out, 0xDB, 0xDC)
		case 0xDB:
			out = append(out, 0xDB, 0xDD)
		default:
			out = append(out, b)
		}
	}
	out = append(out, 0xC0)
	return out
}
