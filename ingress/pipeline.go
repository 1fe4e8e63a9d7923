package ingress

import (
	"strings"

	"github.com/minorsecond/axterm-core/ax25"
	"github.com/minorsecond/axterm-core/axconfig"
	"github.com/minorsecond/axterm-core/axdp"
	"github.com/minorsecond/axterm-core/callsign"
	"github.com/minorsecond/axterm-core/capcache"
	"github.com/minorsecond/axterm-core/kiss"
	"github.com/minorsecond/axterm-core/linkquality"
	"github.com/minorsecond/axterm-core/netrom"
	"github.com/minorsecond/axterm-core/session"
	"github.com/minorsecond/axterm-core/transfer"
)

// Pipeline is the single-threaded dispatcher driving one KISS
// byte-stream through AX.25 decode, session routing, AXDP reassembly,
// link-quality observation, and NET/ROM inference. It is not
// goroutine-safe; the caller (cmd/axtermd) owns its own read loop, per
// spec §5's one-cooperative-task-per-channel model.
type Pipeline struct {
	ctx   Context
	cfg   axconfig.Config
	local callsign.Address
	sink  ByteSink
	dedup DedupPolicy

	kissParser  *kiss.Parser
	sessions    map[session.Key]*session.FSM
	reassembler *transfer.Reassembler
	quality     *linkquality.Estimator
	routing     *netrom.Observer
	caps        *capcache.Cache

	inbound map[session.Key]*transfer.InboundTransferState

	nextPacketID uint64

	OnSession  SessionObserver
	OnTransfer TransferObserver
	OnRouting  RoutingObserver
	// OnRawDisplay receives non-AXDP payload bytes (plain chat over a
	// connected session, or a UI frame) for terminal display.
	OnRawDisplay func(peer session.Key, data []byte)
}

// New returns a Pipeline for local, writing encoded outgoing frames to
// sink and classifying duplicates per dedup (use KISSDedup{} for a
// direct TNC link, NewAGWPEDedup() for an AGWPE network source).
func New(ctx Context, cfg axconfig.Config, local callsign.Address, sink ByteSink, dedup DedupPolicy) *Pipeline {
	return &Pipeline{
		ctx:         ctx,
		cfg:         cfg,
		local:       local.Key(),
		sink:        sink,
		dedup:       dedup,
		kissParser:  kiss.NewParser(),
		sessions:    make(map[session.Key]*session.FSM),
		reassembler: transfer.NewReassembler(),
		quality:     linkquality.New(cfg.LinkQuality, ctx.Clock),
		routing:     netrom.New(local, ctx.Clock),
		caps:        capcache.New(capcache.DefaultMaxEntries, cfg.Decay.CapabilityTTL(), ctx.Clock),
		inbound:     make(map[session.Key]*transfer.InboundTransferState),
	}
}

// Quality exposes the link-quality estimator for display/export.
func (p *Pipeline) Quality() *linkquality.Estimator { return p.quality }

// Routing exposes the NET/ROM observer for display/export.
func (p *Pipeline) Routing() *netrom.Observer { return p.routing }

// Capabilities exposes the per-peer capability cache for display/debug.
func (p *Pipeline) Capabilities() *capcache.Cache { return p.caps }

// Ingest feeds raw bytes read from the ByteSource through KISS parsing
// and dispatches every resulting frame in arrival order.
func (p *Pipeline) Ingest(channel int, data []byte) {
	for _, kf := range p.kissParser.Feed(data) {
		if kf.Cmd != kiss.CmdDataFrame {
			continue
		}
		p.nextPacketID++
		frame, err := ax25.Decode(kf.Payload, p.ctx.Clock.Now())
		if err != nil {
			if p.ctx.Logger != nil {
				p.ctx.Logger.Warn("framing error", "channel", channel, "err", err)
			}
			continue
		}
		p.dispatch(Packet{ID: p.nextPacketID, Channel: channel}, frame)
	}
}

func (p *Pipeline) dispatch(pkt Packet, f ax25.Frame) {
	isDup := p.dedup.IsDuplicate(f.From, f.To, f.Raw, p.ctx.Clock.Now())
	p.quality.Observe(f.From, f.To, isDup)

	isNetRomBroadcast := f.To.Base == "NODES" && f.PID != nil && *f.PID == netrom.PID
	if isNetRomBroadcast {
		p.observeBroadcast(f)
	}

	fromLocal := f.From.Key() == p.local
	toLocal := f.To.Key() == p.local

	if !fromLocal && !toLocal {
		if !isNetRomBroadcast {
			p.routing.ObserveThirdParty(f.From, f.To, f.Via)
		}
		return
	}
	if !toLocal {
		return
	}

	key := session.Key{Local: p.local, Remote: f.From.Key(), Channel: pkt.Channel, ViaKey: viaKey(f.Via)}

	if f.Ctrl.Class == ax25.ClassU && f.Ctrl.USub == ax25.UUI {
		// Connectionless traffic bypasses the session FSM entirely.
		p.handlePayload(key, f.Info)
		return
	}

	fsm := p.sessionFor(key)
	ev, ok := translateEvent(f)
	if !ok {
		return
	}
	p.applyActions(key, fsm.Handle(ev))
}

func (p *Pipeline) sessionFor(key session.Key) *session.FSM {
	fsm, ok := p.sessions[key]
	if !ok {
		fsm = session.New(p.cfg.Session, p.ctx.Clock)
		p.sessions[key] = fsm
	}
	return fsm
}

// translateEvent maps a decoded AX.25 control field onto the session
// FSM's event union.
func translateEvent(f ax25.Frame) (session.Event, bool) {
	switch f.Ctrl.Class {
	case ax25.ClassU:
		switch f.Ctrl.USub {
		case ax25.USABM, ax25.USABME:
			return session.Event{Kind: session.EventReceivedSABM}, true
		case ax25.UUA:
			return session.Event{Kind: session.EventReceivedUA}, true
		case ax25.UDM:
			return session.Event{Kind: session.EventReceivedDM}, true
		case ax25.UDISC:
			return session.Event{Kind: session.EventReceivedDISC}, true
		case ax25.UFRMR:
			return session.Event{Kind: session.EventReceivedFRMR}, true
		}
		return session.Event{}, false
	case ax25.ClassS:
		switch f.Ctrl.SSub {
		case ax25.SRR:
			return session.Event{Kind: session.EventReceivedRR, NR: f.Ctrl.NR, PF: f.Ctrl.PF}, true
		case ax25.SREJ:
			return session.Event{Kind: session.EventReceivedREJ, NR: f.Ctrl.NR, PF: f.Ctrl.PF}, true
		}
		return session.Event{}, false
	case ax25.ClassI:
		return session.Event{Kind: session.EventReceivedI, NS: f.Ctrl.NS, NR: f.Ctrl.NR, PF: f.Ctrl.PF, Payload: f.Info}, true
	}
	return session.Event{}, false
}

// applyActions carries out the FSM's requested side effects: framing
// and writing outgoing control/I-frames, invoking the session observer,
// and handing accepted payload to the AXDP reassembler.
func (p *Pipeline) applyActions(key session.Key, actions []session.Action) {
	for _, a := range actions {
		switch a.Kind {
		case session.ActionSendSABM:
			p.writeFrame(key, ax25.EncodeU(key.Local, key.Remote, nil, ax25.USABM, false))
		case session.ActionSendUA:
			p.writeFrame(key, ax25.EncodeU(key.Local, key.Remote, nil, ax25.UUA, a.Poll))
		case session.ActionSendDM:
			p.writeFrame(key, ax25.EncodeU(key.Local, key.Remote, nil, ax25.UDM, a.Poll))
		case session.ActionSendDISC:
			p.writeFrame(key, ax25.EncodeU(key.Local, key.Remote, nil, ax25.UDISC, false))
		case session.ActionSendRR:
			p.writeFrame(key, ax25.EncodeS(key.Local, key.Remote, nil, ax25.SRR, a.NR, a.Poll))
		case session.ActionSendREJ:
			p.writeFrame(key, ax25.EncodeS(key.Local, key.Remote, nil, ax25.SREJ, a.NR, a.Poll))
		case session.ActionSendI:
			p.writeFrame(key, ax25.EncodeI(key.Local, key.Remote, nil, a.NS, a.NR, a.Poll, pidAXDP, a.Payload))
		case session.ActionNotifyConnected:
			p.notifySession(key, session.StateConnected, "")
		case session.ActionNotifyDisconnected:
			p.reassembler.Reset(key)
			delete(p.sessions, key)
			p.notifySession(key, session.StateDisconnected, a.Reason)
		case session.ActionNotifyDataReceived:
			p.handlePayload(key, a.Payload)
		case session.ActionFail:
			p.notifySession(key, session.StateError, a.Reason)
		}
	}
}

// pidAXDP is the AX.25 protocol-id byte used to carry AXDP traffic over
// I-frames; 0xF0 ("no layer 3") since AXDP rides atop raw connected-mode
// payload rather than registering its own PID.
const pidAXDP = 0xF0

func (p *Pipeline) writeFrame(key session.Key, raw []byte) {
	if p.sink == nil {
		return
	}
	_, _ = p.sink.Write(kiss.Encode(key.Channel, kiss.CmdDataFrame, raw))
}

func (p *Pipeline) notifySession(key session.Key, state session.State, reason string) {
	if p.OnSession != nil {
		p.OnSession(key, state, reason)
	}
}

// handlePayload feeds payload (from a connected I-frame or a UI frame)
// into the AXDP reassembler and dispatches any extracted messages,
// surfacing it as raw terminal text only when no AXDP traffic claims it.
func (p *Pipeline) handlePayload(key session.Key, payload []byte) {
	msgs, suppressRaw := p.reassembler.Feed(key, payload)
	if !suppressRaw && p.OnRawDisplay != nil {
		p.OnRawDisplay(key, payload)
	}
	for _, m := range msgs {
		p.dispatchAXDP(key, m)
	}
}

func (p *Pipeline) dispatchAXDP(key session.Key, m axdp.Message) {
	switch m.Type {
	case axdp.TypeChat:
		p.notifyTransfer(key, "chat", m.Payload)
	case axdp.TypeFileMeta:
		if m.FileMeta == nil {
			return
		}
		totalChunks := uint32(0)
		if m.TotalChunks != nil {
			totalChunks = *m.TotalChunks
		} else if m.FileMeta.ChunkSize > 0 {
			totalChunks = uint32((m.FileMeta.FileSize + uint64(m.FileMeta.ChunkSize) - 1) / uint64(m.FileMeta.ChunkSize))
		}
		p.inbound[key] = transfer.NewInboundTransfer(key, *m.FileMeta, totalChunks, m.Compression)
		p.notifyTransfer(key, "file-announced", *m.FileMeta)
	case axdp.TypeFileChunk:
		in, ok := p.inbound[key]
		if !ok || m.ChunkIndex == nil || m.PayloadCRC32 == nil {
			return
		}
		in.ReceiveChunk(*m.ChunkIndex, m.Payload, *m.PayloadCRC32)
		if in.Status == transfer.InboundComplete {
			delete(p.inbound, key)
			p.notifyTransfer(key, "file-ready", in)
		}
	case axdp.TypeAck, axdp.TypeNack:
		p.notifyTransfer(key, "ack", m)
	case axdp.TypePing:
		p.recordCapabilities(key, m)
		p.notifyTransfer(key, "ping", m)
	case axdp.TypePong:
		p.recordCapabilities(key, m)
		p.notifyTransfer(key, "pong", m)
	case axdp.TypePeerAXDPEnabled:
		p.recordCapabilities(key, m)
		p.notifyTransfer(key, "peer-axdp-enabled", m)
	}
}

// recordCapabilities folds the Capabilities TLV of a PING/PONG/
// PEER_AXDP_ENABLED message into the per-peer capability cache (C11),
// keyed by the session's remote station, when present.
func (p *Pipeline) recordCapabilities(key session.Key, m axdp.Message) {
	if m.Caps == nil {
		return
	}
	p.caps.Put(key.Remote, *m.Caps)
}

func (p *Pipeline) notifyTransfer(key session.Key, kind string, detail any) {
	if p.OnTransfer != nil {
		p.OnTransfer(key, kind, detail)
	}
}

// observeBroadcast parses a NET/ROM nodes broadcast addressed to NODES
// and folds it into the routing observer.
func (p *Pipeline) observeBroadcast(f ax25.Frame) {
	entries, isBroadcast, err := netrom.ParseBroadcast(f.Info)
	if err != nil && p.ctx.Logger != nil {
		p.ctx.Logger.Warn("netrom broadcast parse error", "from", f.From, "err", err)
	}
	if !isBroadcast {
		return
	}
	p.routing.ObserveBroadcast(f.From, entries)
	if p.OnRouting != nil {
		p.OnRouting("broadcast", f.From)
	}
}

// viaKey flattens a digipeater path into an order-sensitive string for
// use as part of session.Key.
func viaKey(via []callsign.Address) string {
	if len(via) == 0 {
		return ""
	}
	parts := make([]string, len(via))
	for i, a := range via {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}
