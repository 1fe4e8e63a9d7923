package netrom

import (
	"fmt"
	"strings"

	"github.com/minorsecond/axterm-core/ax25"
	"github.com/minorsecond/axterm-core/callsign"
)

// BroadcastSignature is the leading byte of a NET/ROM nodes broadcast.
const BroadcastSignature = 0xFF

// entrySize is destCall(7) | alias(6) | bestNeighborCall(7) | quality(1).
const entrySize = 7 + 6 + 7 + 1

// BroadcastEntry is one destination advertised by a NODES broadcast.
type BroadcastEntry struct {
	Destination      callsign.Address
	Alias            string
	BestNeighborCall callsign.Address
	Quality          int
}

// ParseBroadcast decodes a NET/ROM nodes-broadcast payload: a leading
// 0xFF signature followed by zero or more fixed-width entries. It
// returns false (no entries, no error) if the signature byte is absent,
// since that simply means the payload is not a NET/ROM broadcast.
// Trailing bytes that don't fill a whole entry are not decoded: the
// whole entries are returned together with an error.
func ParseBroadcast(payload []byte) ([]BroadcastEntry, bool, error) {
	if len(payload) == 0 || payload[0] != BroadcastSignature {
		return nil, false, nil
	}
	body := payload[1:]
	var entries []BroadcastEntry
	for off := 0; off+entrySize <= len(body); off += entrySize {
		chunk := body[off : off+entrySize]
		var destRaw, neighborRaw [7]byte
		copy(destRaw[:], chunk[0:7])
		alias := strings.TrimRight(string(chunk[7:13]), " ")
		copy(neighborRaw[:], chunk[13:20])
		quality := int(chunk[20])

		dest, _, _ := ax25.DecodeAddress(destRaw)
		neighbor, _, _ := ax25.DecodeAddress(neighborRaw)

		entries = append(entries, BroadcastEntry{
			Destination:      dest,
			Alias:            alias,
			BestNeighborCall: neighbor,
			Quality:          clampByte(quality),
		})
	}
	if len(entries)*entrySize != len(body) {
		return entries, true, fmt.Errorf("netrom: %d trailing bytes after last complete entry", len(body)-len(entries)*entrySize)
	}
	return entries, true, nil
}

// EncodeBroadcast is the inverse of ParseBroadcast, used by tests and by
// any future local-node broadcast originator.
func EncodeBroadcast(entries []BroadcastEntry) []byte {
	out := []byte{BroadcastSignature}
	for _, e := range entries {
		destRaw := ax25.EncodeAddress(e.Destination, false, false)
		out = append(out, destRaw[:]...)
		alias := e.Alias
		if len(alias) > 6 {
			alias = alias[:6]
		}
		for len(alias) < 6 {
			alias += " "
		}
		out = append(out, []byte(alias)...)
		neighborRaw := ax25.EncodeAddress(e.BestNeighborCall, false, false)
		out = append(out, neighborRaw[:]...)
		out = append(out, byte(clampByte(e.Quality)))
	}
	return out
}
