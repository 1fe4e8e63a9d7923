package session

import (
	"time"

	"github.com/minorsecond/axterm-core/axclock"
)

type pendingFrame struct {
	ns      int
	payload []byte
	sent    bool
}

// FSM is one peer's AX.25 connected-mode state machine. It is not
// goroutine-safe; the ingress pipeline drives it from a single
// cooperative task per spec §5.
type FSM struct {
	cfg   Config
	clock axclock.Clock

	state State
	vs    int // V(S)
	va    int // V(A)
	vr    int // V(R)

	pending []pendingFrame
	retries int

	t1Armed    bool
	t1Deadline time.Time
	t3Armed    bool
	t3Deadline time.Time

	isInitiator bool
}

// New returns a fresh FSM in the disconnected state.
func New(cfg Config, clock axclock.Clock) *FSM {
	return &FSM{cfg: cfg.Sanitize(), clock: clock, state: StateDisconnected}
}

func (f *FSM) State() State { return f.state }
func (f *FSM) VS() int      { return f.vs }
func (f *FSM) VA() int      { return f.va }
func (f *FSM) VR() int      { return f.vr }

// Enqueue queues application payload for transmission as an I-frame.
func (f *FSM) Enqueue(payload []byte) {
	f.pending = append(f.pending, pendingFrame{payload: payload})
}

func (f *FSM) armT1() Action {
	f.t1Armed = true
	f.t1Deadline = f.clock.Now().Add(f.cfg.T1)
	return Action{Kind: ActionArmT1}
}

func (f *FSM) armT3() Action {
	f.t3Armed = true
	f.t3Deadline = f.clock.Now().Add(f.cfg.T3)
	return Action{Kind: ActionArmT3}
}

func (f *FSM) disarmT1() { f.t1Armed = false }
func (f *FSM) disarmT3() { f.t3Armed = false }

// unackedCount returns how many queued I-frames have been sent but not
// yet acknowledged.
func (f *FSM) unackedCount() int {
	n := 0
	for _, p := range f.pending {
		if p.sent {
			n++
		}
	}
	return n
}

// drainWindow assigns N(S) and emits sendI actions for queued-but-unsent
// frames while the window has room.
func (f *FSM) drainWindow() []Action {
	var actions []Action
	for i := range f.pending {
		if f.pending[i].sent {
			continue
		}
		if f.unackedCount() >= f.cfg.WindowSize {
			break
		}
		f.pending[i].ns = f.vs
		f.pending[i].sent = true
		f.vs = (f.vs + 1) % 8
		actions = append(actions, Action{Kind: ActionSendI, NS: f.pending[i].ns, NR: f.vr, Payload: f.pending[i].payload})
	}
	return actions
}

// Handle processes one event and returns the actions the caller must
// carry out (framing, notifications, timer (re)arms).
func (f *FSM) Handle(ev Event) []Action {
	switch f.state {
	case StateDisconnected:
		return f.handleDisconnected(ev)
	case StateConnecting:
		return f.handleConnecting(ev)
	case StateConnected:
		return f.handleConnected(ev)
	case StateDisconnecting:
		return f.handleDisconnecting(ev)
	case StateError:
		return nil
	}
	return nil
}

func (f *FSM) handleDisconnected(ev Event) []Action {
	switch ev.Kind {
	case EventConnectRequest:
		f.state = StateConnecting
		f.isInitiator = true
		f.retries = 0
		return []Action{{Kind: ActionSendSABM}, f.armT1()}
	case EventReceivedSABM:
		f.state = StateConnected
		f.vs, f.va, f.vr = 0, 0, 0
		f.isInitiator = false
		return []Action{{Kind: ActionSendUA}, {Kind: ActionNotifyConnected}, f.armT3()}
	case EventReceivedDISC:
		return []Action{{Kind: ActionSendDM}}
	default:
		return nil
	}
}

func (f *FSM) handleConnecting(ev Event) []Action {
	switch ev.Kind {
	case EventReceivedUA:
		f.state = StateConnected
		f.disarmT1()
		actions := []Action{{Kind: ActionNotifyConnected}, f.armT3()}
		actions = append(actions, f.drainWindow()...)
		return actions
	case EventReceivedDM:
		f.state = StateDisconnected
		f.disarmT1()
		return []Action{{Kind: ActionNotifyDisconnected, Reason: "refused"}}
	case EventT1Expired:
		f.retries++
		if f.retries > f.cfg.N2 {
			f.state = StateError
			return []Action{{Kind: ActionNotifyDisconnected, Reason: "n2 exceeded"}, {Kind: ActionFail, Reason: "n2 exceeded"}}
		}
		return []Action{{Kind: ActionSendSABM}, f.armT1()}
	default:
		return nil
	}
}

func (f *FSM) handleConnected(ev Event) []Action {
	switch ev.Kind {
	case EventReceivedI:
		if ev.NS == f.vr {
			f.vr = (f.vr + 1) % 8
			return []Action{
				{Kind: ActionNotifyDataReceived, Payload: ev.Payload},
				{Kind: ActionSendRR, NR: f.vr, Poll: ev.PF},
			}
		}
		return []Action{{Kind: ActionSendREJ, NR: f.vr, Poll: ev.PF}}

	case EventReceivedRR:
		delta := (ev.NR - f.va + 8) % 8
		f.va = ev.NR
		retired := 0
		kept := f.pending[:0]
		for _, p := range f.pending {
			if p.sent && retired < delta {
				retired++
				continue
			}
			kept = append(kept, p)
		}
		f.pending = kept
		f.retries = 0
		return f.drainWindow()

	case EventReceivedREJ:
		f.va = ev.NR
		for i := range f.pending {
			f.pending[i].sent = false
		}
		f.vs = f.va
		return f.drainWindow()

	case EventT1Expired:
		if f.unackedCount() > 0 {
			f.retries++
			if f.retries > f.cfg.N2 {
				f.state = StateError
				return []Action{{Kind: ActionNotifyDisconnected, Reason: "n2 exceeded"}, {Kind: ActionFail, Reason: "n2 exceeded"}}
			}
			return []Action{{Kind: ActionSendRR, NR: f.vr, Poll: true}, f.armT1()}
		}
		return nil

	case EventT3Expired:
		return []Action{{Kind: ActionSendRR, NR: f.vr, Poll: true}, f.armT3()}

	case EventReceivedDISC:
		f.state = StateDisconnected
		f.disarmT1()
		f.disarmT3()
		return []Action{{Kind: ActionSendUA}, {Kind: ActionNotifyDisconnected, Reason: "peer disconnected"}}

	case EventReceivedSABM:
		// Peer re-requesting connection while we think we're connected:
		// reset state per the link establishment procedure.
		f.vs, f.va, f.vr = 0, 0, 0
		f.pending = nil
		f.retries = 0
		return []Action{{Kind: ActionSendUA}, {Kind: ActionNotifyConnected}, f.armT3()}

	case EventReceivedFRMR:
		f.state = StateError
		return []Action{{Kind: ActionNotifyDisconnected, Reason: "frmr"}, {Kind: ActionFail, Reason: "frmr"}}

	case EventUserDisconnect:
		f.state = StateDisconnecting
		f.retries = 0
		return []Action{{Kind: ActionSendDISC}, f.armT1()}

	default:
		return nil
	}
}

func (f *FSM) handleDisconnecting(ev Event) []Action {
	switch ev.Kind {
	case EventReceivedUA:
		f.state = StateDisconnected
		f.disarmT1()
		return []Action{{Kind: ActionNotifyDisconnected, Reason: "disconnected"}}
	case EventReceivedDM:
		f.state = StateDisconnected
		f.disarmT1()
		return []Action{{Kind: ActionNotifyDisconnected, Reason: "disconnected"}}
	case EventT1Expired:
		f.retries++
		if f.retries > f.cfg.N2 {
			f.state = StateDisconnected
			return []Action{{Kind: ActionNotifyDisconnected, Reason: "n2 exceeded"}}
		}
		return []Action{{Kind: ActionSendDISC}, f.armT1()}
	default:
		return nil
	}
}

// TickTimers evaluates whether T1/T3 have expired at now and returns the
// resulting actions. It is the cooperative-task's suspension-point poll
// in place of real time.Timers, per spec §5.
func (f *FSM) TickTimers(now time.Time) []Action {
	var actions []Action
	if f.t1Armed && !now.Before(f.t1Deadline) {
		f.t1Armed = false
		actions = append(actions, f.Handle(Event{Kind: EventT1Expired})...)
	}
	if f.t3Armed && !now.Before(f.t3Deadline) {
		f.t3Armed = false
		actions = append(actions, f.Handle(Event{Kind: EventT3Expired})...)
	}
	return actions
}
