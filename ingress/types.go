// Package ingress wires kiss/ax25 decoding to the session FSM, AXDP
// reassembly, link-quality estimation, and NET/ROM observation in a
// single cooperative dispatch loop, per spec §4.9.
package ingress

import (
	"github.com/charmbracelet/log"

	"github.com/minorsecond/axterm-core/axclock"
	"github.com/minorsecond/axterm-core/callsign"
	"github.com/minorsecond/axterm-core/persist"
	"github.com/minorsecond/axterm-core/session"
)

// ByteSource is anything bytes can be read from: a TCP KISS TNC socket
// or a serial port.
type ByteSource interface {
	Read(p []byte) (int, error)
}

// ByteSink is anything encoded KISS frames can be written to.
type ByteSink interface {
	Write(p []byte) (int, error)
}

// Context bundles the collaborators constructed once by cmd/axtermd and
// threaded through the pipeline, so nothing below reaches for a global.
type Context struct {
	Clock  axclock.Clock
	Random axclock.Random
	Store  persist.Store
	Logger *log.Logger
}

// Packet is one decoded frame, tagged with a monotonically increasing
// id reflecting arrival order on this ByteSource.
type Packet struct {
	ID      uint64
	Channel int
}

// SessionObserver is notified of connected-mode session lifecycle
// events, following the teacher's override-function-variable idiom
// (see src/callbacks.go) rather than a registered-listener interface.
type SessionObserver func(key session.Key, state session.State, reason string)

// TransferObserver is notified of chat and file-transfer progress.
type TransferObserver func(key session.Key, kind string, detail any)

// RoutingObserver is notified when the NET/ROM observer learns or
// updates neighbor/route evidence.
type RoutingObserver func(event string, call callsign.Address)
