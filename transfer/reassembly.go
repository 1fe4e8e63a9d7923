package transfer

import (
	"bytes"

	"github.com/minorsecond/axterm-core/axdp"
	"github.com/minorsecond/axterm-core/session"
)

type peerBuffer struct {
	buf          []byte
	inReassembly bool
}

// Reassembler holds one growing byte buffer per peer and extracts
// complete AXDP messages from it as bytes accumulate. A peer is
// considered "in AXDP reassembly" from the moment a magic-prefixed
// fragment arrives until the message is fully extracted; Feed reports
// this via suppressRaw so the ingress pipeline never surfaces the
// magic-bearing fragment or any of its continuations as raw terminal
// output.
type Reassembler struct {
	peers map[session.Key]*peerBuffer
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{peers: make(map[session.Key]*peerBuffer)}
}

func (r *Reassembler) stateFor(peer session.Key) *peerBuffer {
	st, ok := r.peers[peer]
	if !ok {
		st = &peerBuffer{}
		r.peers[peer] = st
	}
	return st
}

// Feed appends payload to peer's reassembly buffer and extracts every
// AXDP message that can currently be decoded from it, in order. It
// implements the magic-search decode strategy required because
// axdp.Decode treats its entire input as a single candidate message:
// try decoding the buffer as-is; if that fails and no further magic
// follows, wait for more bytes; if magic is found again further in, try
// decoding the bytes before it as one message, and if that also fails,
// drop the leading bytes up to that next magic and retry there, per the DecodeError
// policy of dropping garbage up to the next magic occurrence.
func (r *Reassembler) Feed(peer session.Key, payload []byte) (messages []axdp.Message, suppressRaw bool) {
	st := r.stateFor(peer)
	st.buf = append(st.buf, payload...)

	for {
		idx := bytes.Index(st.buf, axdp.Magic[:])
		if idx < 0 {
			st.buf = nil
			st.inReassembly = false
			break
		}
		if idx > 0 {
			st.buf = st.buf[idx:]
		}
		st.inReassembly = true

		if msg, consumed, ok := axdp.Decode(st.buf); ok {
			messages = append(messages, msg)
			st.buf = st.buf[consumed:]
			st.inReassembly = bytes.Contains(st.buf, axdp.Magic[:])
			continue
		}

		next := nextMagicOffset(st.buf)
		if next < 0 {
			// Not enough bytes yet for this candidate; await more.
			break
		}
		if msg, consumed, ok := axdp.Decode(st.buf[:next]); ok {
			messages = append(messages, msg)
			st.buf = st.buf[consumed:]
			continue
		}
		// The current candidate is malformed, not merely incomplete:
		// drop up to the next magic occurrence and keep scanning.
		st.buf = st.buf[next:]
	}

	suppressRaw = st.inReassembly || len(messages) > 0
	return messages, suppressRaw
}

// nextMagicOffset finds the next occurrence of the AXDP magic at or
// after offset 4 (skipping the one already known to be at offset 0),
// or -1 if none is present yet.
func nextMagicOffset(buf []byte) int {
	if len(buf) <= 4 {
		return -1
	}
	idx := bytes.Index(buf[4:], axdp.Magic[:])
	if idx < 0 {
		return -1
	}
	return idx + 4
}

// Reset discards any partially buffered state for peer, used on session
// disconnect so a reused session doesn't inherit stale reassembly bytes.
func (r *Reassembler) Reset(peer session.Key) {
	delete(r.peers, peer)
}
