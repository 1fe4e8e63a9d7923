package ax25

import (
	"fmt"
	"hash/crc32"
	"time"

	"github.com/minorsecond/axterm-core/callsign"
)

// Frame is an immutable decoded AX.25 frame.
type Frame struct {
	Timestamp time.Time
	From      callsign.Address
	To        callsign.Address
	Via       []callsign.Address // ordered digipeater path, <= MaxDigis
	Class     FrameClass
	Ctrl      Control
	PID       *byte
	Info      []byte
	Raw       []byte
}

// Decode parses a full AX.25 frame (address field, control, optional PID,
// info) from raw on-wire bytes.
func Decode(raw []byte, ts time.Time) (Frame, error) {
	dest, src, path, n, err := DecodeAddresses(raw)
	if err != nil {
		return Frame{}, fmt.Errorf("ax25: %w", err)
	}
	if n >= len(raw) {
		return Frame{}, fmt.Errorf("ax25: frame has no control byte")
	}
	ctrl := DecodeControl(raw[n])
	n++

	var pid *byte
	if ctrl.Class == ClassI || (ctrl.Class == ClassU && ctrl.USub == UUI) {
		if n >= len(raw) {
			return Frame{}, fmt.Errorf("ax25: I/UI frame missing PID")
		}
		p := raw[n]
		pid = &p
		n++
	}

	info := append([]byte(nil), raw[n:]...)

	return Frame{
		Timestamp: ts,
		From:      src,
		To:        dest,
		Via:       path.Addrs,
		Class:     ctrl.Class,
		Ctrl:      ctrl,
		PID:       pid,
		Info:      info,
		Raw:       append([]byte(nil), raw...),
	}, nil
}

// EncodeUI builds a raw UI frame: addresses, UI control, PID, info.
func EncodeUI(from, to callsign.Address, via []callsign.Address, pid byte, info []byte) []byte {
	var path DigiPath
	for _, a := range via {
		path.Append(a, false)
	}
	out := EncodeAddresses(to, from, path, true)
	out = append(out, EncodeUControl(UUI, false))
	out = append(out, pid)
	out = append(out, info...)
	return out
}

// EncodeI builds a raw I-frame.
func EncodeI(from, to callsign.Address, via []callsign.Address, ns, nr int, pf bool, pid byte, info []byte) []byte {
	var path DigiPath
	for _, a := range via {
		path.Append(a, false)
	}
	out := EncodeAddresses(to, from, path, true)
	out = append(out, EncodeIControl(ns, nr, pf))
	out = append(out, pid)
	out = append(out, info...)
	return out
}

// EncodeU builds a raw U-frame with no PID/info (SABM, UA, DISC, DM, FRMR).
func EncodeU(from, to callsign.Address, via []callsign.Address, sub USubtype, pf bool) []byte {
	var path DigiPath
	for _, a := range via {
		path.Append(a, false)
	}
	out := EncodeAddresses(to, from, path, sub == USABM || sub == USABME || sub == UDISC)
	out = append(out, EncodeUControl(sub, pf))
	return out
}

// EncodeS builds an S-frame (RR/RNR/REJ/SREJ), no info field.
func EncodeS(from, to callsign.Address, via []callsign.Address, sub SSubtype, nr int, pf bool) []byte {
	var path DigiPath
	for _, a := range via {
		path.Append(a, false)
	}
	out := EncodeAddresses(to, from, path, false)
	out = append(out, EncodeSControl(sub, nr, pf))
	return out
}

// ieeeTable is exported indirectly via CRC32; kept unexported since only
// this package's CRC32 helper should use it.
var ieeeTable = crc32.IEEETable

// CRC32 computes the IEEE 802.3 CRC32 (poly 0xEDB88320, init/final
// 0xFFFFFFFF) used to validate AXDP FILE_CHUNK payloads.
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, ieeeTable)
}
