package netrom

import (
	"sort"
	"time"

	"github.com/minorsecond/axterm-core/axclock"
	"github.com/minorsecond/axterm-core/callsign"
)

// DefaultUnknownNeighborQuality seeds routeQuality math when the next hop
// toward a destination has never itself been directly observed.
const DefaultUnknownNeighborQuality = 128

// Observer builds neighbor and route tables from NET/ROM broadcasts and
// inferred evidence in overheard third-party traffic.
type Observer struct {
	local     callsign.Address
	clock     axclock.Clock
	neighbors map[callsign.Address]*Neighbor
	routes    map[callsign.Address]*Route
	intervals map[callsign.Address]*originTracker
}

// New returns an Observer for the given local station.
func New(local callsign.Address, clock axclock.Clock) *Observer {
	return &Observer{
		local:     local.Key(),
		clock:     clock,
		neighbors: make(map[callsign.Address]*Neighbor),
		routes:    make(map[callsign.Address]*Route),
		intervals: make(map[callsign.Address]*originTracker),
	}
}

// ObserveBroadcast ingests a NET/ROM nodes broadcast heard from sender:
// sender becomes (or refreshes) a broadcast-sourced neighbor, and each entry
// becomes (or updates, if better) a broadcast-sourced route.
func (o *Observer) ObserveBroadcast(sender callsign.Address, entries []BroadcastEntry) {
	now := o.clock.Now()
	o.recordOriginInterval(sender, now)
	o.touchNeighbor(sender, DefaultUnknownNeighborQuality, SourceBroadcast, now)

	for _, e := range entries {
		if e.Destination.Key() == o.local {
			continue
		}
		route := Route{
			Destination: e.Destination,
			Origin:      sender,
			Quality:     e.Quality,
			Path:        []callsign.Address{e.BestNeighborCall},
			LastUpdated: now,
			SourceType:  SourceBroadcast,
		}
		o.updateRouteIfBetter(route)
	}
}

// ObserveThirdParty ingests a UI frame between two non-local stations
// heard via an optional digipeater path, treating it as inferred
// evidence of a route to src. hops is len(via); the next hop toward src
// is the last digipeater in the path, or src itself if heard directly.
func (o *Observer) ObserveThirdParty(src, dst callsign.Address, via []callsign.Address) {
	now := o.clock.Now()
	if src.Key() == o.local || dst.Key() == o.local {
		return
	}

	nextHop := src
	if len(via) > 0 {
		nextHop = via[len(via)-1]
	}
	hops := len(via)

	o.touchNeighbor(nextHop, DefaultUnknownNeighborQuality, SourceInferred, now)

	neighborQuality := DefaultUnknownNeighborQuality
	if n, ok := o.neighbors[nextHop.Key()]; ok {
		neighborQuality = n.Quality
	}
	quality := clampByte(int(float64(neighborQuality) * hopPenalty(hops)))

	route := Route{
		Destination: src,
		Origin:      nextHop,
		Quality:     quality,
		Path:        append([]callsign.Address{}, via...),
		LastUpdated: now,
		SourceType:  SourceInferred,
	}
	o.updateRouteIfBetter(route)
}

func (o *Observer) touchNeighbor(call callsign.Address, defaultQuality int, src SourceType, now time.Time) {
	key := call.Key()
	n, ok := o.neighbors[key]
	if !ok {
		o.neighbors[key] = &Neighbor{
			Call: call, Quality: defaultQuality, LastSeen: now, SourceType: src,
		}
		return
	}
	n.LastSeen = now
	n.ObsolescenceCount = 0
	// Classic broadcast presence upgrades an inferred neighbor; it never
	// downgrades one already confirmed classic.
	if src == SourceBroadcast && n.SourceType == SourceInferred {
		n.SourceType = SourceBroadcast
	}
}

// updateRouteIfBetter replaces the stored route to candidate.Destination
// only if candidate beats it: higher quality wins; ties prefer the
// lexicographically smaller next hop; remaining ties keep the existing
// (earlier-seen) route.
func (o *Observer) updateRouteIfBetter(candidate Route) {
	key := candidate.Destination.Key()
	existing, ok := o.routes[key]
	if !ok {
		r := candidate
		o.routes[key] = &r
		return
	}
	if candidate.Quality > existing.Quality {
		r := candidate
		o.routes[key] = &r
		return
	}
	if candidate.Quality == existing.Quality && candidate.Origin.String() < existing.Origin.String() {
		r := candidate
		o.routes[key] = &r
	}
}

// Neighbors returns all tracked neighbors regardless of mode, sorted by
// call sign for deterministic iteration.
func (o *Observer) Neighbors() []Neighbor {
	out := make([]Neighbor, 0, len(o.neighbors))
	for _, n := range o.neighbors {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Call.String() < out[j].Call.String() })
	return out
}

// Routes returns all tracked routes regardless of mode, sorted by
// destination for deterministic iteration.
func (o *Observer) Routes() []Route {
	out := make([]Route, 0, len(o.routes))
	for _, r := range o.routes {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Destination.String() < out[j].Destination.String() })
	return out
}

// View filters Neighbors/Routes by routing mode: classic surfaces only
// SourceClassic/SourceBroadcast entries, inference surfaces only
// SourceInferred entries, hybrid surfaces everything.
func (o *Observer) View(mode RoutingMode) (neighbors []Neighbor, routes []Route) {
	for _, n := range o.Neighbors() {
		if modeAccepts(mode, n.SourceType) {
			neighbors = append(neighbors, n)
		}
	}
	for _, r := range o.Routes() {
		if modeAccepts(mode, r.SourceType) {
			routes = append(routes, r)
		}
	}
	return neighbors, routes
}

func modeAccepts(mode RoutingMode, src SourceType) bool {
	switch mode {
	case ModeClassic:
		return src == SourceClassic || src == SourceBroadcast
	case ModeInference:
		return src == SourceInferred
	default:
		return true
	}
}

// Route looks up the current best route to dest, if any.
func (o *Observer) Route(dest callsign.Address) (Route, bool) {
	r, ok := o.routes[dest.Key()]
	if !ok {
		return Route{}, false
	}
	return *r, true
}

// pathToStrings flattens a digipeater path for export.
func pathToStrings(path []callsign.Address) []string {
	out := make([]string, len(path))
	for i, a := range path {
		out[i] = a.String()
	}
	return out
}

// stringsToPath parses an exported digipeater path, skipping any entry
// that fails to parse rather than failing the whole import.
func stringsToPath(path []string) []callsign.Address {
	out := make([]callsign.Address, 0, len(path))
	for _, s := range path {
		a, err := callsign.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ExportNeighbors dumps every tracked neighbor for persistence.
func (o *Observer) ExportNeighbors() []NeighborExport {
	out := make([]NeighborExport, 0, len(o.neighbors))
	for _, n := range o.neighbors {
		out = append(out, NeighborExport{
			Call:       n.Call.String(),
			Quality:    n.Quality,
			LastSeen:   n.LastSeen,
			SourceType: int(n.SourceType),
		})
	}
	return out
}

// ExportRoutes dumps every tracked route for persistence.
func (o *Observer) ExportRoutes() []RouteExport {
	out := make([]RouteExport, 0, len(o.routes))
	for _, r := range o.routes {
		out = append(out, RouteExport{
			Destination: r.Destination.String(),
			Origin:      r.Origin.String(),
			Quality:     r.Quality,
			Path:        pathToStrings(r.Path),
			LastUpdated: r.LastUpdated,
			SourceType:  int(r.SourceType),
		})
	}
	return out
}

// ImportNeighbors restores neighbors from exported records, overwriting
// any tracked neighbor with the same call; other tracked neighbors are
// kept. Records with an unparseable call are
// skipped rather than failing the whole import, matching
// linkquality.Estimator's Import leniency.
func (o *Observer) ImportNeighbors(records []NeighborExport) {
	for _, r := range records {
		call, err := callsign.Parse(r.Call)
		if err != nil {
			continue
		}
		lastSeen := r.LastSeen
		if lastSeen.IsZero() || lastSeen.Unix() <= 0 {
			lastSeen = o.clock.Now()
		}
		o.neighbors[call.Key()] = &Neighbor{
			Call:       call,
			Quality:    clampByte(r.Quality),
			LastSeen:   lastSeen,
			SourceType: SourceType(r.SourceType),
		}
	}
}

// ImportRoutes restores routes from exported records, same leniency as
// ImportNeighbors.
func (o *Observer) ImportRoutes(records []RouteExport) {
	for _, r := range records {
		dest, err := callsign.Parse(r.Destination)
		if err != nil {
			continue
		}
		origin, err := callsign.Parse(r.Origin)
		if err != nil {
			continue
		}
		lastUpdated := r.LastUpdated
		if lastUpdated.IsZero() || lastUpdated.Unix() <= 0 {
			lastUpdated = o.clock.Now()
		}
		o.routes[dest.Key()] = &Route{
			Destination: dest,
			Origin:      origin,
			Quality:     clampByte(r.Quality),
			Path:        stringsToPath(r.Path),
			LastUpdated: lastUpdated,
			SourceType:  SourceType(r.SourceType),
		}
	}
}
