package axdp

// idKey identifies a message within a session for dedup purposes.
type idKey struct {
	SessionID uint32
	MessageID uint32
}

// DedupWindow is a bounded, insertion-ordered (sessionID, messageID) ->
// index map used to detect retransmitted AXDP messages. Different
// sessions never collide since the session id is part of the key.
type DedupWindow struct {
	window int
	order  []idKey
	seen   map[idKey]int
	nextIx int
}

// NewDedupWindow returns a tracker that evicts the oldest entry once more
// than window distinct (session, message) pairs have been inserted.
func NewDedupWindow(window int) *DedupWindow {
	if window <= 0 {
		window = 1
	}
	return &DedupWindow{
		window: window,
		seen:   make(map[idKey]int),
	}
}

// IsDuplicate reports whether (sessionID, messageID) has already been
// seen. If not, it is inserted (evicting the oldest entry if the window
// is full); an already-seen key is never refreshed (its position does
// not change).
func (d *DedupWindow) IsDuplicate(sessionID, messageID uint32) bool {
	k := idKey{SessionID: sessionID, MessageID: messageID}
	if _, ok := d.seen[k]; ok {
		return true
	}
	d.seen[k] = d.nextIx
	d.nextIx++
	d.order = append(d.order, k)
	if len(d.order) > d.window {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	return false
}

// Len returns the number of tracked entries.
func (d *DedupWindow) Len() int {
	return len(d.order)
}
