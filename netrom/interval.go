package netrom

import (
	"time"

	"github.com/minorsecond/axterm-core/callsign"
)

// DuplicateBroadcastGuard suppresses EMA updates from origin retransmits
// that arrive implausibly close together (digipeated echoes, AGWPE
// duplicate delivery).
const DuplicateBroadcastGuard = 6 * time.Second

// EMAAlpha smooths the observed broadcast interval: ema = alpha*observed
// + (1-alpha)*ema.
const EMAAlpha = 0.3

// MissedBroadcastsBeforeStale is the number of EMA intervals an origin
// may miss before it is considered stale.
const MissedBroadcastsBeforeStale = 3

type originTracker struct {
	lastBroadcast time.Time
	ema           time.Duration
	samples       int
}

// recordOriginInterval folds a newly heard broadcast from origin into its
// interval tracker, ignoring retransmits inside DuplicateBroadcastGuard.
func (o *Observer) recordOriginInterval(origin callsign.Address, now time.Time) {
	key := origin.Key()
	t, ok := o.intervals[key]
	if !ok {
		o.intervals[key] = &originTracker{lastBroadcast: now}
		return
	}
	observed := now.Sub(t.lastBroadcast)
	if observed < DuplicateBroadcastGuard {
		return
	}
	if t.samples == 0 {
		t.ema = observed
	} else {
		t.ema = time.Duration(EMAAlpha*float64(observed) + (1-EMAAlpha)*float64(t.ema))
	}
	t.samples++
	t.lastBroadcast = now
}

// IsOriginStale reports whether origin has missed its adaptive stale
// threshold: MissedBroadcastsBeforeStale times its EMA interval elapsed
// since its last broadcast. An origin with no established interval
// (fewer than one observed gap) is never considered stale by this check.
func (o *Observer) IsOriginStale(origin callsign.Address, now time.Time) bool {
	t, ok := o.intervals[origin.Key()]
	if !ok || t.samples == 0 {
		return false
	}
	return now.Sub(t.lastBroadcast) > time.Duration(MissedBroadcastsBeforeStale)*t.ema
}

// OriginInterval returns the current EMA interval estimate for origin, if
// established.
func (o *Observer) OriginInterval(origin callsign.Address) (time.Duration, bool) {
	t, ok := o.intervals[origin.Key()]
	if !ok || t.samples == 0 {
		return 0, false
	}
	return t.ema, true
}

// OriginIntervalExport is the wire shape of an originTracker for
// persistence.
type OriginIntervalExport struct {
	Origin     string
	EMASeconds float64
	Samples    int
}

// ExportOriginIntervals dumps every tracked origin's broadcast-interval
// estimate for persistence.
func (o *Observer) ExportOriginIntervals() []OriginIntervalExport {
	out := make([]OriginIntervalExport, 0, len(o.intervals))
	for key, t := range o.intervals {
		if t.samples == 0 {
			continue
		}
		out = append(out, OriginIntervalExport{
			Origin:     key.String(),
			EMASeconds: t.ema.Seconds(),
			Samples:    t.samples,
		})
	}
	return out
}

// ImportOriginIntervals restores origin interval trackers from exported
// records, skipping entries with an unparseable call.
func (o *Observer) ImportOriginIntervals(records []OriginIntervalExport) {
	for _, r := range records {
		origin, err := callsign.Parse(r.Origin)
		if err != nil {
			continue
		}
		o.intervals[origin.Key()] = &originTracker{
			lastBroadcast: o.clock.Now(),
			ema:           time.Duration(r.EMASeconds * float64(time.Second)),
			samples:       r.Samples,
		}
	}
}
