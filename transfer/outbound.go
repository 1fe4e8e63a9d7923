package transfer

import (
	"crypto/sha256"
	"path/filepath"
	"strings"

	"github.com/minorsecond/axterm-core/axdp"
	"github.com/minorsecond/axterm-core/session"
)

// OutboundTransferStatus tracks an outbound file transfer's lifecycle.
type OutboundTransferStatus int

const (
	OutboundAwaitingAcceptance OutboundTransferStatus = iota
	OutboundSending
	OutboundComplete
	OutboundFailed
	OutboundCancelled
)

// alreadyCompressedExtensions names file categories CompressionAnalyzer
// skips without even attempting compression, since they are already
// compressed containers.
var alreadyCompressedExtensions = map[string]bool{
	".zip": true, ".gz": true, ".bz2": true, ".xz": true, ".7z": true,
	".jpg": true, ".jpeg": true, ".png": true, ".mp3": true, ".mp4": true,
	".m4a": true, ".ogg": true, ".webp": true,
}

// CompressionAnalyzer decides whether whole-file compression should be
// attempted for filename/data with alg, and if so returns the compressed
// bytes; otherwise it returns ok=false and the transfer
// proceeds uncompressed.
func CompressionAnalyzer(filename string, data []byte, alg axdp.CompressionAlg) (compressed []byte, ok bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	if alreadyCompressedExtensions[ext] {
		return nil, false
	}
	out := Compress(data, alg)
	if out == nil {
		return nil, false
	}
	return out, true
}

// OutboundTransferState drives one outbound file transfer: metadata
// computation, optional whole-file compression, chunking, and
// SACK-driven retransmission of missing chunks.
type OutboundTransferState struct {
	Peer       session.Key
	Filename   string
	SessionID  uint32
	MessageID  uint32
	ChunkSize  uint16
	Status     OutboundTransferStatus
	FailReason string

	originalData   []byte
	wireData       []byte // data actually transmitted, possibly compressed
	compression    *axdp.CompressionAlg
	originalSize   uint64
	compressedSize uint64
}

// NewOutboundTransfer computes metadata for data and decides whether to
// whole-file compress it, preferring the first algorithm in
// preferredAlgs that CompressionAnalyzer reports as beneficial.
func NewOutboundTransfer(peer session.Key, sessionID, messageID uint32, filename string, data []byte, chunkSize uint16, preferredAlgs []axdp.CompressionAlg) *OutboundTransferState {
	s := &OutboundTransferState{
		Peer:         peer,
		Filename:     filename,
		SessionID:    sessionID,
		MessageID:    messageID,
		ChunkSize:    chunkSize,
		Status:       OutboundAwaitingAcceptance,
		originalData: data,
		wireData:     data,
		originalSize: uint64(len(data)),
	}
	for _, alg := range preferredAlgs {
		if compressed, ok := CompressionAnalyzer(filename, data, alg); ok {
			s.wireData = compressed
			a := alg
			s.compression = &a
			s.compressedSize = uint64(len(compressed))
			break
		}
	}
	return s
}

// FileMeta builds the FILE_META announcement for this transfer.
func (s *OutboundTransferState) FileMeta() axdp.FileMeta {
	sum := sha256.Sum256(s.originalData)
	return axdp.FileMeta{
		Filename:  s.Filename,
		FileSize:  s.originalSize,
		SHA256:    sum,
		ChunkSize: s.ChunkSize,
	}
}

// TotalChunks returns the number of chunks wireData is split into.
func (s *OutboundTransferState) TotalChunks() uint32 {
	if s.ChunkSize == 0 {
		return 0
	}
	return uint32((len(s.wireData) + int(s.ChunkSize) - 1) / int(s.ChunkSize))
}

// Chunk returns the payload bytes for chunkIndex.
func (s *OutboundTransferState) Chunk(chunkIndex uint32) []byte {
	start := int(chunkIndex) * int(s.ChunkSize)
	if start >= len(s.wireData) {
		return nil
	}
	end := start + int(s.ChunkSize)
	if end > len(s.wireData) {
		end = len(s.wireData)
	}
	return s.wireData[start:end]
}

// Accept transitions an awaiting-acceptance transfer to sending, per
// the "await acceptance ACK before sending chunks" rule.
func (s *OutboundTransferState) Accept() {
	if s.Status == OutboundAwaitingAcceptance {
		s.Status = OutboundSending
	}
}

// Cancel marks the transfer cancelled; idempotent, and a no-op once the
// transfer has already reached a terminal state.
func (s *OutboundTransferState) Cancel() {
	switch s.Status {
	case OutboundComplete, OutboundFailed, OutboundCancelled:
		return
	default:
		s.Status = OutboundCancelled
	}
}

// Fail marks the transfer failed with reason, unless already terminal.
func (s *OutboundTransferState) Fail(reason string) {
	switch s.Status {
	case OutboundComplete, OutboundFailed, OutboundCancelled:
		return
	default:
		s.Status = OutboundFailed
		s.FailReason = reason
	}
}

// RetransmitTargets returns the chunk indices a peer's SACK bitmap
// reports missing, which the caller should resend.
func (s *OutboundTransferState) RetransmitTargets(peerSack *axdp.SackBitmap, upTo uint32) []uint32 {
	return peerSack.MissingChunks(upTo)
}

// Complete marks the transfer done and builds its summary metrics.
func (s *OutboundTransferState) Complete(durationSeconds float64) axdp.TransferMetrics {
	s.Status = OutboundComplete
	m := axdp.TransferMetrics{
		TotalBytes:      uint64(len(s.wireData)),
		DurationSeconds: durationSeconds,
	}
	if s.compression != nil {
		orig := s.originalSize
		compressed := s.compressedSize
		alg := *s.compression
		m.OriginalSize = &orig
		m.CompressedSize = &compressed
		m.Algorithm = &alg
	}
	return m
}
