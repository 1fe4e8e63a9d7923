package transfer

import (
	"crypto/sha256"

	"github.com/minorsecond/axterm-core/ax25"
	"github.com/minorsecond/axterm-core/axdp"
	"github.com/minorsecond/axterm-core/axerr"
	"github.com/minorsecond/axterm-core/session"
)

// InboundTransferStatus tracks an inbound file transfer's lifecycle.
type InboundTransferStatus int

const (
	InboundReceiving InboundTransferStatus = iota
	InboundComplete
	InboundFailed
)

// InboundTransferState accumulates FILE_CHUNK payloads for one inbound
// file transfer until every chunk index has been received.
type InboundTransferState struct {
	Peer        session.Key
	Filename    string
	FileSize    uint64
	SHA256      [32]byte
	ChunkSize   uint16
	TotalChunks uint32
	Compression *axdp.CompressionAlg
	Status      InboundTransferStatus
	FailReason  string

	chunks map[uint32][]byte
	sack   *axdp.SackBitmap
}

// NewInboundTransfer starts tracking a transfer announced by a FILE_META
// message carrying totalChunks and an optional compression algorithm.
func NewInboundTransfer(peer session.Key, meta axdp.FileMeta, totalChunks uint32, compression *axdp.CompressionAlg) *InboundTransferState {
	return &InboundTransferState{
		Peer:        peer,
		Filename:    meta.Filename,
		FileSize:    meta.FileSize,
		SHA256:      meta.SHA256,
		ChunkSize:   meta.ChunkSize,
		TotalChunks: totalChunks,
		Compression: compression,
		chunks:      make(map[uint32][]byte),
		sack:        axdp.NewSackBitmap(0, totalChunks),
	}
}

// ReceiveChunk verifies the chunk's CRC32 and, if it matches and the
// index was not previously received, stores it and updates the SACK
// bitmap. Mismatched or duplicate chunks never advance progress: they
// are silently ignored, relying on the sender's retransmission.
func (s *InboundTransferState) ReceiveChunk(chunkIndex uint32, payload []byte, crc uint32) {
	if s.Status != InboundReceiving {
		return
	}
	if s.sack.IsReceived(chunkIndex) {
		return
	}
	if crc32Of(payload) != crc {
		return
	}
	s.chunks[chunkIndex] = payload
	s.sack.MarkReceived(chunkIndex)
	if uint32(len(s.chunks)) == s.TotalChunks {
		s.Status = InboundComplete
	}
}

// Sack returns the current SACK bitmap, for building an ACK response.
func (s *InboundTransferState) Sack() *axdp.SackBitmap {
	return s.sack
}

// MissingChunks reports which chunk indices in [baseChunk, baseChunk+n]
// are still outstanding.
func (s *InboundTransferState) MissingChunks(n uint32) []uint32 {
	return s.sack.MissingChunks(n)
}

// Assemble concatenates every chunk in index order. It returns ok=false
// if the transfer is not yet InboundComplete.
func (s *InboundTransferState) Assemble() (reassembled []byte, ok bool) {
	if s.Status != InboundComplete {
		return nil, false
	}
	for i := uint32(0); i < s.TotalChunks; i++ {
		reassembled = append(reassembled, s.chunks[i]...)
	}
	return reassembled, true
}

// Finish decompresses (if needed) and verifies the assembled file
// against the announced sha256 and size. maxDecompressedSize is the
// per-file decompression bound (always >= the per-message bound). On
// any mismatch the transfer is marked InboundFailed and no partial file
// is retained.
func (s *InboundTransferState) Finish(maxDecompressedSize int) ([]byte, error) {
	raw, ok := s.Assemble()
	if !ok {
		return nil, axerr.New(axerr.TransferError, "transfer not complete")
	}

	final := raw
	if s.Compression != nil && *s.Compression != axdp.CompressionNone {
		decompressed := Decompress(raw, *s.Compression, int(s.FileSize), maxDecompressedSize)
		if decompressed == nil {
			s.Status = InboundFailed
			s.chunks = nil
			s.FailReason = "decompression failed or exceeded bound"
			return nil, axerr.New(axerr.ResourceError, s.FailReason)
		}
		final = decompressed
	}

	if sha256.Sum256(final) != s.SHA256 {
		s.Status = InboundFailed
		s.chunks = nil
		s.FailReason = "sha256 mismatch"
		return nil, axerr.New(axerr.IntegrityError, s.FailReason)
	}
	return final, nil
}

func crc32Of(data []byte) uint32 {
	return ax25.CRC32(data)
}
