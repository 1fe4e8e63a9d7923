// Package netrom observes NET/ROM broadcast traffic and third-party
// digipeated traffic to build neighbor and route tables, in three
// viewing modes: classic (broadcast-derived only), inference
// (overheard-traffic-derived only), and hybrid (the union).
package netrom

import (
	"time"

	"github.com/minorsecond/axterm-core/callsign"
)

// PID is the AX.25 protocol-id byte carried by NET/ROM traffic.
const PID = 0xCF

// SourceType records how a Neighbor or Route entry was learned.
type SourceType int

const (
	SourceClassic SourceType = iota
	SourceBroadcast
	SourceInferred
)

// RoutingMode selects which sourceTypes a View surfaces. The canonical
// tables always retain every entry regardless of mode.
type RoutingMode int

const (
	ModeClassic RoutingMode = iota
	ModeInference
	ModeHybrid
)

// Neighbor is a directly observed or inferred adjacent station.
type Neighbor struct {
	Call              callsign.Address
	Quality           int // clamped 0..255
	LastSeen          time.Time
	ObsolescenceCount int
	SourceType        SourceType
}

// Route is a path to a destination via zero or more intermediate hops.
type Route struct {
	Destination callsign.Address
	Origin      callsign.Address // the neighbor this route evidence came from
	Quality     int              // clamped 0..255
	Path        []callsign.Address
	LastUpdated time.Time
	SourceType  SourceType
}

// NeighborExport is the wire shape of a Neighbor for persistence.
type NeighborExport struct {
	Call       string
	Quality    int
	LastSeen   time.Time
	SourceType int
}

// RouteExport is the wire shape of a Route for persistence.
type RouteExport struct {
	Destination string
	Origin      string
	Quality     int
	Path        []string
	LastUpdated time.Time
	SourceType  int
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// hopPenalty implements 1 / (1 + hops^2).
func hopPenalty(hops int) float64 {
	return 1.0 / (1.0 + float64(hops*hops))
}
