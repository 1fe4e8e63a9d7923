// Package linkquality implements the ETX/EWMA directional link-quality
// estimator: a bounded observation ring per directed (from, to) pair,
// duplicate-aware delivery-ratio estimation, and export/import for
// persistence.
package linkquality

import (
	"math"
	"time"

	"github.com/minorsecond/axterm-core/axclock"
	"github.com/minorsecond/axterm-core/callsign"
)

// ServiceDestinations lists pseudo-destinations excluded from link
// quality edges; NODES is deliberately absent since NET/ROM broadcasts
// to it are legitimate evidence for C7.
var ServiceDestinations = map[string]bool{
	"BEACON": true,
	"ID":     true,
	"MAIL":   true,
	"CQ":     true,
	"APRS":   true,
	"WIDE1":  true,
	"WIDE2":  true,
}

// IsServiceDestination reports whether base is a reserved pseudo
// destination that never produces link-quality edges. WIDEn-N aliases
// are matched by their WIDEn prefix.
func IsServiceDestination(base string) bool {
	if ServiceDestinations[base] {
		return true
	}
	return len(base) >= 5 && base[:4] == "WIDE"
}

const (
	// DefaultMaxObservations bounds the ring per directed pair.
	DefaultMaxObservations = 100
	// DefaultSlidingWindow is the evaluation window for df/dr.
	DefaultSlidingWindow = 5 * time.Minute
	// DefaultEWMAAlpha is the smoothing factor for ewmaQuality updates.
	DefaultEWMAAlpha = 0.25
	// DefaultInitialDeliveryRatio seeds a new link's EWMA.
	DefaultInitialDeliveryRatio = 0.5
)

type observation struct {
	at          time.Time
	isDuplicate bool
}

// LinkStat is the exported view of one directed link's quality.
type LinkStat struct {
	From             callsign.Address
	To               callsign.Address
	EWMAQuality      float64
	DFEstimate       float64
	DREstimate       *float64
	ObservationCount int
	DuplicateCount   int
	LastUpdated      time.Time
}

// Config bounds and tunes the estimator.
type Config struct {
	MaxObservationsPerLink int
	SlidingWindow          time.Duration
	EWMAAlpha              float64
	InitialDeliveryRatio   float64
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxObservationsPerLink: DefaultMaxObservations,
		SlidingWindow:          DefaultSlidingWindow,
		EWMAAlpha:              DefaultEWMAAlpha,
		InitialDeliveryRatio:   DefaultInitialDeliveryRatio,
	}
}

type linkKey struct {
	from callsign.Address
	to   callsign.Address
}

type link struct {
	obs            []observation // ring buffer, bounded
	ewmaQuality    float64
	duplicateCount int
	lastUpdated    time.Time
}

// Estimator owns the per-directed-pair observation rings and derived
// quality metrics. Observations on A->B never mutate B->A.
type Estimator struct {
	cfg   Config
	clock axclock.Clock
	links map[linkKey]*link
}

// New returns an Estimator with an empty table.
func New(cfg Config, clock axclock.Clock) *Estimator {
	return &Estimator{cfg: cfg, clock: clock, links: make(map[linkKey]*link)}
}

// Observe records one reception event on the from->to edge. Observations
// for service destinations are dropped per invariant 7. isDuplicate must
// be computed by the caller using the source-aware ingestion policy
// (KISS: 0s window: always false; AGWPE: 0.25s byte-identical window).
func (e *Estimator) Observe(from, to callsign.Address, isDuplicate bool) {
	if from.Key() == to.Key() {
		return
	}
	if IsServiceDestination(from.Base) || IsServiceDestination(to.Base) {
		return
	}
	k := linkKey{from: from.Key(), to: to.Key()}
	l, ok := e.links[k]
	if !ok {
		l = &link{ewmaQuality: e.cfg.InitialDeliveryRatio * 255}
		e.links[k] = l
	}
	now := e.clock.Now()
	l.obs = append(l.obs, observation{at: now, isDuplicate: isDuplicate})
	if len(l.obs) > e.cfg.MaxObservationsPerLink {
		l.obs = l.obs[len(l.obs)-e.cfg.MaxObservationsPerLink:]
	}
	if isDuplicate {
		l.duplicateCount++
	}
	l.lastUpdated = now

	df := e.windowedDF(l, now)
	dr, reverseKnown := e.reverseDF(from, to, now)
	inst := instantaneousQuality(df, dr, reverseKnown)
	l.ewmaQuality = (1-e.cfg.EWMAAlpha)*l.ewmaQuality + e.cfg.EWMAAlpha*inst
}

func instantaneousQuality(df float64, dr float64, reverseKnown bool) float64 {
	if reverseKnown {
		return 255 * df * dr
	}
	return 255 * df * 1.0
}

// windowedDF computes unique/total over observations within the sliding
// window ending at now.
func (e *Estimator) windowedDF(l *link, now time.Time) float64 {
	cutoff := now.Add(-e.cfg.SlidingWindow)
	total, unique := 0, 0
	for _, o := range l.obs {
		if o.at.Before(cutoff) {
			continue
		}
		total++
		if !o.isDuplicate {
			unique++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(unique) / float64(total)
}

func (e *Estimator) reverseDF(from, to callsign.Address, now time.Time) (float64, bool) {
	k := linkKey{from: to.Key(), to: from.Key()}
	l, ok := e.links[k]
	if !ok || len(l.obs) == 0 {
		return 0, false
	}
	return e.windowedDF(l, now), true
}

// LinkStats returns the current stats for from->to, zeroed if no
// observations exist yet.
func (e *Estimator) LinkStats(from, to callsign.Address) LinkStat {
	now := e.clock.Now()
	k := linkKey{from: from.Key(), to: to.Key()}
	l, ok := e.links[k]
	if !ok {
		return LinkStat{From: from, To: to}
	}
	df := e.windowedDF(l, now)
	dr, reverseKnown := e.reverseDF(from, to, now)
	stat := LinkStat{
		From:             from,
		To:               to,
		EWMAQuality:      l.ewmaQuality,
		DFEstimate:       df,
		ObservationCount: len(l.obs),
		DuplicateCount:   l.duplicateCount,
		LastUpdated:      l.lastUpdated,
	}
	if reverseKnown {
		stat.DREstimate = &dr
	}
	return stat
}

// Quality returns the stored EWMA-smoothed 0..255 quality score for
// from->to: the per-observation instantaneous ETX quality (bidirectional
// df*dr or unidirectional df) folded through the EWMA in Observe.
func (e *Estimator) Quality(from, to callsign.Address) int {
	return clampByte(int(math.Round(e.LinkStats(from, to).EWMAQuality)))
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

// ExportRecord is the wire shape for persistence import/export.
type ExportRecord struct {
	FromCall         string
	ToCall           string
	Quality          int
	LastUpdated      time.Time
	DFEstimate       *float64
	DREstimate       *float64
	DuplicateCount   int
	ObservationCount int
}

// Export dumps every tracked link as an ExportRecord.
func (e *Estimator) Export() []ExportRecord {
	var out []ExportRecord
	for k, l := range e.links {
		df := e.windowedDF(l, e.clock.Now())
		dr, reverseKnown := e.reverseDF(k.from, k.to, e.clock.Now())
		rec := ExportRecord{
			FromCall:         k.from.String(),
			ToCall:           k.to.String(),
			Quality:          clampByte(int(math.Round(l.ewmaQuality))),
			LastUpdated:      l.lastUpdated,
			DFEstimate:       &df,
			DuplicateCount:   l.duplicateCount,
			ObservationCount: len(l.obs),
		}
		if reverseKnown {
			rec.DREstimate = &dr
		}
		out = append(out, rec)
	}
	return out
}

// Import restores links from exported records. Out-of-range quality is
// mapped via ratio = clamp(quality/255, 0, 1); zero or distant-past
// timestamps are replaced with the current clock time.
func (e *Estimator) Import(records []ExportRecord) {
	for _, r := range records {
		from, err := callsign.Parse(r.FromCall)
		if err != nil {
			continue
		}
		to, err := callsign.Parse(r.ToCall)
		if err != nil {
			continue
		}
		ratio := float64(r.Quality) / 255.0
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
		ts := r.LastUpdated
		if ts.IsZero() || ts.Unix() <= 0 {
			ts = e.clock.Now()
		}
		k := linkKey{from: from.Key(), to: to.Key()}
		e.links[k] = &link{
			ewmaQuality:    ratio * 255,
			duplicateCount: r.DuplicateCount,
			lastUpdated:    ts,
		}
	}
}
