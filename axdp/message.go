// Package axdp implements the AXDP reliable-datagram application protocol
// carried inside AX.25 UI/I payloads: a TLV-encoded message set with
// magic "AXT1".
package axdp

import "fmt"

// Magic is the 4-byte literal every AXDP message begins with.
var Magic = [4]byte{'A', 'X', 'T', '1'}

// HasMagic reports whether buf begins with the AXDP magic. Shorter
// inputs return false.
func HasMagic(buf []byte) bool {
	if len(buf) < 4 {
		return false
	}
	return buf[0] == Magic[0] && buf[1] == Magic[1] && buf[2] == Magic[2] && buf[3] == Magic[3]
}

// MessageType is the AXDP message discriminant.
type MessageType int

const (
	TypeUnknown MessageType = iota
	TypeChat
	TypeFileMeta
	TypeFileChunk
	TypeAck
	TypeNack
	TypePing
	TypePong
	TypePeerAXDPEnabled
)

// CompressionAlg names the whole-file compression algorithm applied to a
// transfer, if any.
type CompressionAlg int

const (
	CompressionNone CompressionAlg = iota
	CompressionLZ4
	CompressionDeflate
)

// FileMeta describes a file being transferred.
type FileMeta struct {
	Filename    string
	FileSize    uint64 // original, uncompressed size
	SHA256      [32]byte
	ChunkSize   uint16
	Description string
}

// Capabilities describes a remote peer's AXDP feature set.
type Capabilities struct {
	MaxProtocolVersion uint8
	CompressionAlgs    []CompressionAlg
	MaxChunkSize       uint16
}

// TransferMetrics reports summary statistics for a completed transfer.
type TransferMetrics struct {
	TotalBytes      uint64
	DurationSeconds float64
	OriginalSize    *uint64
	CompressedSize  *uint64
	Algorithm       *CompressionAlg
}

// Ratio returns CompressedSize/OriginalSize, or 1.0 if either is absent.
func (m TransferMetrics) Ratio() float64 {
	if m.OriginalSize == nil || m.CompressedSize == nil || *m.OriginalSize == 0 {
		return 1.0
	}
	return float64(*m.CompressedSize) / float64(*m.OriginalSize)
}

// SavingsPercent returns the percentage of bytes saved by compression.
func (m TransferMetrics) SavingsPercent() float64 {
	return (1.0 - m.Ratio()) * 100.0
}

// BytesPerSecond returns the effective transfer rate.
func (m TransferMetrics) BytesPerSecond() float64 {
	if m.DurationSeconds <= 0 {
		return 0
	}
	return float64(m.TotalBytes) / m.DurationSeconds
}

// UnknownTLV preserves a TLV of a type this decoder doesn't recognize, so
// it can be forwarded round-trip.
type UnknownTLV struct {
	Type  byte
	Value []byte
}

// Message is the AXDP tagged union. Only the fields relevant to Type are
// meaningful; Validate enforces the per-type invariants.
type Message struct {
	Type      MessageType
	SessionID uint32
	MessageID uint32

	ChunkIndex   *uint32
	TotalChunks  *uint32
	Payload      []byte
	PayloadCRC32 *uint32
	Sack         *SackBitmap
	Caps         *Capabilities
	FileMeta     *FileMeta
	Compression  *CompressionAlg
	Metrics      *TransferMetrics

	// AckedMessageID is set for ACK/NACK messages.
	AckedMessageID *uint32

	Unknown []UnknownTLV
}

// Validate checks the per-type mandatory-field invariants from the spec.
func (m Message) Validate() error {
	switch m.Type {
	case TypeChat:
		if m.Payload == nil {
			return fmt.Errorf("axdp: CHAT message missing payload")
		}
	case TypeFileChunk:
		if m.ChunkIndex == nil || m.TotalChunks == nil {
			return fmt.Errorf("axdp: FILE_CHUNK missing chunk index/total")
		}
		if *m.ChunkIndex >= *m.TotalChunks {
			return fmt.Errorf("axdp: FILE_CHUNK index %d >= total %d", *m.ChunkIndex, *m.TotalChunks)
		}
		if m.Payload == nil || m.PayloadCRC32 == nil {
			return fmt.Errorf("axdp: FILE_CHUNK missing payload/crc32")
		}
	case TypeAck, TypeNack:
		if m.AckedMessageID == nil {
			return fmt.Errorf("axdp: ACK/NACK missing acknowledged message id")
		}
	case TypeFileMeta:
		if m.FileMeta == nil {
			return fmt.Errorf("axdp: FILE_META missing file meta record")
		}
	}
	return nil
}
