package ingress

import (
	"time"

	"github.com/minorsecond/axterm-core/callsign"
)

// DedupPolicy decides whether a just-received frame is a duplicate
// delivery of one already seen, per the source-aware ingestion rule of
// spec §4.5: KISS sources never duplicate (the TNC delivers each frame
// once); AGWPE network sources can, within a short byte-identical
// window.
type DedupPolicy interface {
	IsDuplicate(from, to callsign.Address, raw []byte, now time.Time) bool
}

// KISSDedup always reports no duplicates, matching a direct KISS TNC
// link where every delivered frame is a distinct reception.
type KISSDedup struct{}

func (KISSDedup) IsDuplicate(from, to callsign.Address, raw []byte, now time.Time) bool {
	return false
}

// AGWPEDedupWindow is the byte-identical duplicate-suppression window
// for AGWPE network KISS sources, which can redeliver the same frame
// across multiple client subscriptions.
const AGWPEDedupWindow = 250 * time.Millisecond

// AGWPEDedup suppresses a frame as duplicate if an identical
// (from, to, raw) tuple was already observed within AGWPEDedupWindow.
// Entries older than the window are pruned on each call so the table
// never grows past the set of frames seen in the trailing window.
type AGWPEDedup struct {
	seen map[string]time.Time
}

func NewAGWPEDedup() *AGWPEDedup {
	return &AGWPEDedup{seen: make(map[string]time.Time)}
}

func (d *AGWPEDedup) IsDuplicate(from, to callsign.Address, raw []byte, now time.Time) bool {
	for k, seenAt := range d.seen {
		if now.Sub(seenAt) > AGWPEDedupWindow {
			delete(d.seen, k)
		}
	}

	key := from.String() + "|" + to.String() + "|" + string(raw)
	last, ok := d.seen[key]
	d.seen[key] = now
	return ok && now.Sub(last) <= AGWPEDedupWindow
}
