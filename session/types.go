// Package session implements the per-peer AX.25 connected-mode state
// machine: SABM/UA/DISC/RR/REJ/I handling, T1/T3 timers, and the
// modulo-8 progress accounting used by the transfer engine.
package session

import "github.com/minorsecond/axterm-core/callsign"

// State is one of the five connected-mode states.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// EventKind discriminates the Event union.
type EventKind int

const (
	EventConnectRequest EventKind = iota
	EventReceivedSABM
	EventReceivedUA
	EventReceivedDM
	EventReceivedDISC
	EventReceivedI
	EventReceivedRR
	EventReceivedREJ
	EventReceivedFRMR
	EventT1Expired
	EventT3Expired
	EventUserDisconnect
)

// Event is the FSM's input union. Only the fields relevant to Kind are
// meaningful, following the teacher's flat dlq_item_t convention.
type Event struct {
	Kind    EventKind
	NS      int
	NR      int
	PF      bool
	Payload []byte
}

// ActionKind discriminates the Action union the FSM emits.
type ActionKind int

const (
	ActionSendSABM ActionKind = iota
	ActionSendUA
	ActionSendDM
	ActionSendDISC
	ActionSendRR
	ActionSendREJ
	ActionSendI
	ActionNotifyConnected
	ActionNotifyDisconnected
	ActionNotifyDataReceived
	ActionFail
	ActionArmT1
	ActionArmT3
)

// Action is one side effect the FSM wants carried out: framing a control
// or I-frame, firing a notification callback, or (re)arming a timer.
type Action struct {
	Kind    ActionKind
	NS      int
	NR      int
	Poll    bool // P/F bit to set on an outgoing frame
	Payload []byte
	Reason  string
}

// Key identifies a session by its full addressing tuple.
type Key struct {
	Local   callsign.Address
	Remote  callsign.Address
	Channel int
	ViaKey  string // flattened digi path, order-sensitive
}
