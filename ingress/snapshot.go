package ingress

import (
	"github.com/minorsecond/axterm-core/linkquality"
	"github.com/minorsecond/axterm-core/netrom"
	"github.com/minorsecond/axterm-core/persist"
)

// ExportSnapshot converts the pipeline's live routing and link-quality
// tables into a persist.Snapshot, stamped with cfg's hash so a future
// Load can detect a config change. Metadata.LastPacketID is the ID of
// the last packet the pipeline ingested (0 if none).
func (p *Pipeline) ExportSnapshot() persist.Snapshot {
	neighborExports := p.routing.ExportNeighbors()
	neighbors := make([]persist.NeighborRecord, len(neighborExports))
	for i, n := range neighborExports {
		neighbors[i] = persist.NeighborRecord{
			Call:       n.Call,
			Quality:    n.Quality,
			LastSeen:   n.LastSeen,
			SourceType: n.SourceType,
		}
	}

	routeExports := p.routing.ExportRoutes()
	routes := make([]persist.RouteRecord, len(routeExports))
	for i, r := range routeExports {
		routes[i] = persist.RouteRecord{
			Destination: r.Destination,
			Origin:      r.Origin,
			Quality:     r.Quality,
			Path:        r.Path,
			LastUpdated: r.LastUpdated,
			SourceType:  r.SourceType,
		}
	}

	intervalExports := p.routing.ExportOriginIntervals()
	intervals := make([]persist.OriginIntervalRecord, len(intervalExports))
	for i, iv := range intervalExports {
		intervals[i] = persist.OriginIntervalRecord{
			Origin:     iv.Origin,
			EMASeconds: iv.EMASeconds,
			Samples:    iv.Samples,
		}
	}

	linkExports := p.quality.Export()
	links := make([]persist.LinkStatRecord, len(linkExports))
	for i, l := range linkExports {
		df := 0.0
		if l.DFEstimate != nil {
			df = *l.DFEstimate
		}
		links[i] = persist.LinkStatRecord{
			FromCall:         l.FromCall,
			ToCall:           l.ToCall,
			Quality:          l.Quality,
			LastUpdated:      l.LastUpdated,
			DFEstimate:       df,
			DREstimate:       l.DREstimate,
			DuplicateCount:   l.DuplicateCount,
			ObservationCount: l.ObservationCount,
		}
	}

	return persist.Snapshot{
		Neighbors:       neighbors,
		Routes:          routes,
		LinkStats:       links,
		OriginIntervals: intervals,
		Metadata: persist.Metadata{
			LastPacketID: p.nextPacketID,
			ConfigHash:   p.cfg.Hash(),
		},
	}
}

// ImportSnapshot restores routing and link-quality state from a
// previously loaded snapshot, folding it into the live tables rather
// than replacing them (the pipeline may already have observed traffic
// since construction).
func (p *Pipeline) ImportSnapshot(snap persist.Snapshot) {
	neighborExports := make([]netrom.NeighborExport, len(snap.Neighbors))
	for i, n := range snap.Neighbors {
		neighborExports[i] = netrom.NeighborExport{
			Call:       n.Call,
			Quality:    n.Quality,
			LastSeen:   n.LastSeen,
			SourceType: n.SourceType,
		}
	}
	p.routing.ImportNeighbors(neighborExports)

	routeExports := make([]netrom.RouteExport, len(snap.Routes))
	for i, r := range snap.Routes {
		routeExports[i] = netrom.RouteExport{
			Destination: r.Destination,
			Origin:      r.Origin,
			Quality:     r.Quality,
			Path:        r.Path,
			LastUpdated: r.LastUpdated,
			SourceType:  r.SourceType,
		}
	}
	p.routing.ImportRoutes(routeExports)

	intervalExports := make([]netrom.OriginIntervalExport, len(snap.OriginIntervals))
	for i, iv := range snap.OriginIntervals {
		intervalExports[i] = netrom.OriginIntervalExport{
			Origin:     iv.Origin,
			EMASeconds: iv.EMASeconds,
			Samples:    iv.Samples,
		}
	}
	p.routing.ImportOriginIntervals(intervalExports)

	linkExports := make([]linkquality.ExportRecord, len(snap.LinkStats))
	for i, l := range snap.LinkStats {
		df := l.DFEstimate
		linkExports[i] = linkquality.ExportRecord{
			FromCall:         l.FromCall,
			ToCall:           l.ToCall,
			Quality:          l.Quality,
			LastUpdated:      l.LastUpdated,
			DFEstimate:       &df,
			DREstimate:       l.DREstimate,
			DuplicateCount:   l.DuplicateCount,
			ObservationCount: l.ObservationCount,
		}
	}
	p.quality.Import(linkExports)
}
