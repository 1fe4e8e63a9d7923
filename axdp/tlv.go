package axdp

import (
	"encoding/binary"
)

// TLV type codes. Stable across versions; unknown types are preserved
// on decode for forward compatibility.
const (
	tlvMessageType     byte = 0x01
	tlvSessionID       byte = 0x02
	tlvMessageID       byte = 0x03
	tlvChunkIndex      byte = 0x04
	tlvTotalChunks     byte = 0x05
	tlvPayload         byte = 0x06
	tlvPayloadCRC32    byte = 0x07
	tlvSackBitmap      byte = 0x08
	tlvCapabilities    byte = 0x09
	tlvFileMeta        byte = 0x0A
	tlvCompression     byte = 0x0B
	tlvTransferMetrics byte = 0x0C
	tlvAckedMessageID  byte = 0x0D
)

type rawTLV struct {
	Type  byte
	Value []byte
}

// parseTLVs reads TLVs from buf (which follows the magic) until the
// buffer is exhausted. Returns nil, false if the buffer ends mid-TLV
// (truncated), which the caller treats as "no message yet".
func parseTLVs(buf []byte) ([]rawTLV, bool) {
	var tlvs []rawTLV
	off := 0
	for off < len(buf) {
		if off+3 > len(buf) {
			return nil, false
		}
		typ := buf[off]
		length := int(binary.BigEndian.Uint16(buf[off+1 : off+3]))
		off += 3
		if off+length > len(buf) {
			return nil, false
		}
		tlvs = append(tlvs, rawTLV{Type: typ, Value: buf[off : off+length]})
		off += length
	}
	return tlvs, true
}

func encodeTLV(out []byte, typ byte, value []byte) []byte {
	out = append(out, typ)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(value)))
	out = append(out, lenBuf[:]...)
	out = append(out, value...)
	return out
}

func u32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func parseU32(b []byte) (uint32, bool) {
	if len(b) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(b), true
}

func u16(v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return b[:]
}

func parseU16(b []byte) (uint16, bool) {
	if len(b) != 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(b), true
}

func u64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func parseU64(b []byte) (uint64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(b), true
}

func messageTypeWire(t MessageType) byte {
	switch t {
	case TypeChat:
		return 1
	case TypeFileMeta:
		return 2
	case TypeFileChunk:
		return 3
	case TypeAck:
		return 4
	case TypeNack:
		return 5
	case TypePing:
		return 6
	case TypePong:
		return 7
	case TypePeerAXDPEnabled:
		return 8
	default:
		return 0
	}
}

func messageTypeFromWire(w byte) MessageType {
	switch w {
	case 1:
		return TypeChat
	case 2:
		return TypeFileMeta
	case 3:
		return TypeFileChunk
	case 4:
		return TypeAck
	case 5:
		return TypeNack
	case 6:
		return TypePing
	case 7:
		return TypePong
	case 8:
		return TypePeerAXDPEnabled
	default:
		return TypeUnknown
	}
}

func compressionWire(a CompressionAlg) byte {
	switch a {
	case CompressionLZ4:
		return 1
	case CompressionDeflate:
		return 2
	default:
		return 0
	}
}

func compressionFromWire(w byte) CompressionAlg {
	switch w {
	case 1:
		return CompressionLZ4
	case 2:
		return CompressionDeflate
	default:
		return CompressionNone
	}
}

func encodeFileMeta(fm FileMeta) []byte {
	var out []byte
	name := []byte(fm.Filename)
	out = append(out, u16(uint16(len(name)))...)
	out = append(out, name...)
	out = append(out, u64(fm.FileSize)...)
	out = append(out, fm.SHA256[:]...)
	out = append(out, u16(fm.ChunkSize)...)
	desc := []byte(fm.Description)
	out = append(out, u16(uint16(len(desc)))...)
	out = append(out, desc...)
	return out
}

func decodeFileMeta(b []byte) (FileMeta, bool) {
	var fm FileMeta
	if len(b) < 2 {
		return fm, false
	}
	nameLen, _ := parseU16(b[0:2])
	off := 2
	if off+int(nameLen) > len(b) {
		return fm, false
	}
	fm.Filename = string(b[off : off+int(nameLen)])
	off += int(nameLen)
	if off+8 > len(b) {
		return fm, false
	}
	fm.FileSize, _ = parseU64(b[off : off+8])
	off += 8
	if off+32 > len(b) {
		return fm, false
	}
	copy(fm.SHA256[:], b[off:off+32])
	off += 32
	if off+2 > len(b) {
		return fm, false
	}
	fm.ChunkSize, _ = parseU16(b[off : off+2])
	off += 2
	if off+2 > len(b) {
		return fm, false
	}
	descLen, _ := parseU16(b[off : off+2])
	off += 2
	if off+int(descLen) > len(b) {
		return fm, false
	}
	fm.Description = string(b[off : off+int(descLen)])
	return fm, true
}

func encodeCapabilities(c Capabilities) []byte {
	out := []byte{c.MaxProtocolVersion, byte(len(c.CompressionAlgs))}
	for _, a := range c.CompressionAlgs {
		out = append(out, compressionWire(a))
	}
	out = append(out, u16(c.MaxChunkSize)...)
	return out
}

func decodeCapabilities(b []byte) (Capabilities, bool) {
	var c Capabilities
	if len(b) < 2 {
		return c, false
	}
	c.MaxProtocolVersion = b[0]
	n := int(b[1])
	off := 2
	if off+n > len(b) {
		return c, false
	}
	for i := 0; i < n; i++ {
		c.CompressionAlgs = append(c.CompressionAlgs, compressionFromWire(b[off+i]))
	}
	off += n
	if off+2 > len(b) {
		return c, false
	}
	c.MaxChunkSize, _ = parseU16(b[off : off+2])
	return c, true
}

func encodeTransferMetrics(m TransferMetrics) []byte {
	var out []byte
	out = append(out, u64(m.TotalBytes)...)
	out = append(out, u64(uint64(m.DurationSeconds*1000))...) // milliseconds, BE
	hasOrig := byte(0)
	if m.OriginalSize != nil {
		hasOrig = 1
	}
	out = append(out, hasOrig)
	if m.OriginalSize != nil {
		out = append(out, u64(*m.OriginalSize)...)
	}
	hasComp := byte(0)
	if m.CompressedSize != nil {
		hasComp = 1
	}
	out = append(out, hasComp)
	if m.CompressedSize != nil {
		out = append(out, u64(*m.CompressedSize)...)
	}
	hasAlg := byte(0)
	if m.Algorithm != nil {
		hasAlg = 1
	}
	out = append(out, hasAlg)
	if m.Algorithm != nil {
		out = append(out, compressionWire(*m.Algorithm))
	}
	return out
}

func decodeTransferMetrics(b []byte) (TransferMetrics, bool) {
	var m TransferMetrics
	if len(b) < 17 {
		return m, false
	}
	total, _ := parseU64(b[0:8])
	m.TotalBytes = total
	durMs, _ := parseU64(b[8:16])
	m.DurationSeconds = float64(durMs) / 1000.0
	off := 16
	hasOrig := b[off]
	off++
	if hasOrig == 1 {
		if off+8 > len(b) {
			return m, false
		}
		v, _ := parseU64(b[off : off+8])
		m.OriginalSize = &v
		off += 8
	}
	if off >= len(b) {
		return m, false
	}
	hasComp := b[off]
	off++
	if hasComp == 1 {
		if off+8 > len(b) {
			return m, false
		}
		v, _ := parseU64(b[off : off+8])
		m.CompressedSize = &v
		off += 8
	}
	if off >= len(b) {
		return m, false
	}
	hasAlg := b[off]
	off++
	if hasAlg == 1 {
		if off >= len(b) {
			return m, false
		}
		alg := compressionFromWire(b[off])
		m.Algorithm = &alg
	}
	return m, true
}
