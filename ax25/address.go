// Package ax25 implements AX.25 address and control-field encoding, frame
// classification, and CRC32 as used to validate AXDP file chunks.
package ax25

import (
	"fmt"

	"github.com/minorsecond/axterm-core/callsign"
)

// MaxDigis is the maximum number of via/digipeater addresses carried by a
// frame; DigiPath is truncated to this length.
const MaxDigis = 8

// EncodeAddress writes the 7-byte wire form of addr: six shifted,
// space-padded ASCII characters followed by the SSID byte. last marks the
// final address in the sequence (sets the extension bit); cmd sets the
// command/response bit.
func EncodeAddress(addr callsign.Address, last bool, cmd bool) [7]byte {
	var out [7]byte
	base := addr.PadBase()
	for i := 0; i < 6; i++ {
		out[i] = base[i] << 1
	}
	var b byte = 0b0110_0000 // reserved SSID bits (5-6) set
	b |= byte(addr.SSID&0x0F) << 1
	if last {
		b |= 0x01
	}
	if cmd {
		b |= 0x80
	}
	out[6] = b
	return out
}

// DecodeAddress reverses EncodeAddress, returning the address, whether
// this was the last address in the sequence, and the command/response bit.
func DecodeAddress(b [7]byte) (addr callsign.Address, last bool, cmd bool) {
	chars := make([]byte, 6)
	for i := 0; i < 6; i++ {
		chars[i] = b[i] >> 1
	}
	ssid := int((b[6] >> 1) & 0x0F)
	last = b[6]&0x01 != 0
	cmd = b[6]&0x80 != 0
	return callsign.New(string(chars), ssid), last, cmd
}

// DigiPath is an ordered list of via/digipeater addresses, truncated to
// MaxDigis elements. RepeatedMask carries the AX.25 "has been repeated"
// bit per entry (index-aligned with Addrs); exposed but never consulted
// by quality math per the spec's Design Notes.
type DigiPath struct {
	Addrs        []callsign.Address
	RepeatedMask []bool
}

// Append adds addr (and its repeated bit) to the path, truncating at
// MaxDigis.
func (d *DigiPath) Append(addr callsign.Address, repeated bool) {
	if len(d.Addrs) >= MaxDigis {
		return
	}
	d.Addrs = append(d.Addrs, addr)
	d.RepeatedMask = append(d.RepeatedMask, repeated)
}

// EncodeAddresses encodes dest, src, and an optional digipeater path into
// the wire address field, setting the extension bit correctly on the last
// address regardless of how many digis are present.
func EncodeAddresses(dest, src callsign.Address, path DigiPath, cmd bool) []byte {
	n := len(path.Addrs)
	if n > MaxDigis {
		n = MaxDigis
	}
	out := make([]byte, 0, 7*(2+n))
	srcIsLast := n == 0
	out = append(out, EncodeAddress(dest, false, cmd)[:]...)
	out = append(out, EncodeAddress(src, srcIsLast, !cmd)[:]...)
	for i := 0; i < n; i++ {
		isLast := i == n-1
		// A digipeater address reuses the wire bit EncodeAddress calls
		// "cmd" as the AX.25 has-been-repeated flag, not command/response.
		repeated := i < len(path.RepeatedMask) && path.RepeatedMask[i]
		enc := EncodeAddress(path.Addrs[i], isLast, repeated)
		out = append(out, enc[:]...)
	}
	return out
}

// DecodeAddresses parses the wire address field starting at buf[0],
// returning dest, src, the digi path, and the number of bytes consumed.
// It rejects sequences whose extension bit never appears within the
// first dest+src+MaxDigis = 10 addresses (70 bytes).
func DecodeAddresses(buf []byte) (dest, src callsign.Address, path DigiPath, consumed int, err error) {
	const maxAddrs = 2 + MaxDigis
	var addrs []callsign.Address
	// bit7, index-aligned with addrs: the command/response bit for
	// dest/src, but the AX.25 has-been-repeated bit for digi addresses.
	var bit7 []bool

	for i := 0; i < maxAddrs; i++ {
		off := i * 7
		if off+7 > len(buf) {
			return dest, src, path, 0, fmt.Errorf("ax25: truncated address field at address %d", i)
		}
		var raw [7]byte
		copy(raw[:], buf[off:off+7])
		a, last, cmdBit := DecodeAddress(raw)
		addrs = append(addrs, a)
		bit7 = append(bit7, cmdBit)
		if last {
			consumed = off + 7
			break
		}
		if i == maxAddrs-1 {
			return dest, src, path, 0, fmt.Errorf("ax25: extension bit not found within %d addresses", maxAddrs)
		}
	}

	if len(addrs) < 2 {
		return dest, src, path, 0, fmt.Errorf("ax25: address field needs at least dest+src")
	}
	dest, src = addrs[0], addrs[1]
	for i := 2; i < len(addrs); i++ {
		path.Append(addrs[i], bit7[i])
	}
	return dest, src, path, consumed, nil
}
