package persist

import (
	"time"

	"github.com/minorsecond/axterm-core/axclock"
)

// Retention bounds clamp pruneOldEntries per §4.8.
const (
	MinRouteRetentionDays = 1
	MaxRouteRetentionDays = 30
)

// distantPastSentinel is Go's zero time.Time (Jan 1, year 1): the
// classic source of "739648 d ago" display bugs when a persisted
// timestamp is missing or corrupt.
var distantPastSentinel time.Time

// Facade is the single writer surface onto a Store; readers receive
// independent Snapshot value copies.
type Facade struct {
	store Store
	clock axclock.Clock
}

// New returns a Facade backed by store.
func New(store Store, clock axclock.Clock) *Facade {
	return &Facade{store: store, clock: clock}
}

// Save stamps snap with the current time and writes it transactionally.
func (f *Facade) Save(snap Snapshot) error {
	snap.Metadata.SnapshotTimestamp = f.clock.Now()
	return f.store.WriteAll(snap)
}

// Load returns the stored snapshot only if it is fresh enough and was
// written under the expected config; otherwise it returns ok=false so
// the core rebuilds from live evidence. Timestamps in the returned
// snapshot are sanitized per invariant 8.
func (f *Facade) Load(maxSnapshotAge time.Duration, expectedConfigHash string) (Snapshot, bool, error) {
	snap, ok, err := f.store.ReadAll()
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	now := f.clock.Now()
	if now.Sub(snap.Metadata.SnapshotTimestamp) > maxSnapshotAge {
		return Snapshot{}, false, nil
	}
	if snap.Metadata.ConfigHash != expectedConfigHash {
		return Snapshot{}, false, nil
	}
	sanitizeTimestamps(&snap, now)
	return snap, true, nil
}

func isSentinel(t time.Time) bool {
	return t.IsZero() || t.Equal(distantPastSentinel) || t.Unix() <= 0
}

// sanitizeTimestamps replaces any distant-past-sentinel or non-positive
// timestamp with now, per invariant 8.
func sanitizeTimestamps(snap *Snapshot, now time.Time) {
	for i := range snap.Neighbors {
		if isSentinel(snap.Neighbors[i].LastSeen) {
			snap.Neighbors[i].LastSeen = now
		}
	}
	for i := range snap.Routes {
		if isSentinel(snap.Routes[i].LastUpdated) {
			snap.Routes[i].LastUpdated = now
		}
	}
	for i := range snap.LinkStats {
		if isSentinel(snap.LinkStats[i].LastUpdated) {
			snap.LinkStats[i].LastUpdated = now
		}
	}
}

// clampRetentionDays bounds retentionDays to [MinRouteRetentionDays,
// MaxRouteRetentionDays].
func clampRetentionDays(retentionDays int) int {
	if retentionDays < MinRouteRetentionDays {
		return MinRouteRetentionDays
	}
	if retentionDays > MaxRouteRetentionDays {
		return MaxRouteRetentionDays
	}
	return retentionDays
}

// PruneOldEntries deletes neighbors/routes/linkStats whose timestamp is
// older than retentionDays (clamped), relative to now. originIntervals
// are left untouched: they track broadcast cadence, not entity
// freshness, and are cheap to keep.
func PruneOldEntries(snap Snapshot, retentionDays int, now time.Time) Snapshot {
	cutoff := now.Add(-time.Duration(clampRetentionDays(retentionDays)) * 24 * time.Hour)

	var neighbors []NeighborRecord
	for _, n := range snap.Neighbors {
		if n.LastSeen.After(cutoff) {
			neighbors = append(neighbors, n)
		}
	}
	var routes []RouteRecord
	for _, r := range snap.Routes {
		if r.LastUpdated.After(cutoff) {
			routes = append(routes, r)
		}
	}
	var linkStats []LinkStatRecord
	for _, l := range snap.LinkStats {
		if l.LastUpdated.After(cutoff) {
			linkStats = append(linkStats, l)
		}
	}

	snap.Neighbors = neighbors
	snap.Routes = routes
	snap.LinkStats = linkStats
	return snap
}
