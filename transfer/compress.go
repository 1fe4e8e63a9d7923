// Package transfer implements the AXDP reassembler and file-transfer
// engine (C5): per-peer inbound byte reassembly with raw-output
// suppression while a message is mid-flight, inbound/outbound file
// transfer state machines, and the compression contract they share.
package transfer

import (
	"bytes"
	"compress/flate"
	"io"

	"github.com/minorsecond/axterm-core/axdp"
	"github.com/pierrec/lz4/v4"
)

// CompressionShrinkThreshold is the minimum byte count below which
// whole-file compression is never attempted; tiny files rarely shrink
// and the TLV/framing overhead would dominate.
const CompressionShrinkThreshold = 256

// Compress returns the compressed form of data under alg, or nil if
// compression would not shrink it (including alg == CompressionNone).
func Compress(data []byte, alg axdp.CompressionAlg) []byte {
	if len(data) < CompressionShrinkThreshold {
		return nil
	}
	var out []byte
	switch alg {
	case axdp.CompressionLZ4:
		out = compressLZ4(data)
	case axdp.CompressionDeflate:
		out = compressDeflate(data)
	default:
		return nil
	}
	if out == nil || len(out) >= len(data) {
		return nil
	}
	return out
}

// Decompress reverses Compress. It returns nil if originalLength
// exceeds maxLength, guarding against a malicious or corrupt length
// claim before any allocation proportional to originalLength occurs.
func Decompress(data []byte, alg axdp.CompressionAlg, originalLength int, maxLength int) []byte {
	if originalLength > maxLength || originalLength < 0 {
		return nil
	}
	var out []byte
	switch alg {
	case axdp.CompressionLZ4:
		out = decompressLZ4(data, originalLength)
	case axdp.CompressionDeflate:
		out = decompressDeflate(data, originalLength)
	default:
		return nil
	}
	if out == nil || len(out) != originalLength {
		return nil
	}
	return out
}

func compressLZ4(data []byte) []byte {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return nil
	}
	return buf.Bytes()
}

func decompressLZ4(data []byte, originalLength int) []byte {
	r := lz4.NewReader(bytes.NewReader(data))
	out := make([]byte, originalLength)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil
	}
	return out
}

func compressDeflate(data []byte) []byte {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return nil
	}
	return buf.Bytes()
}

func decompressDeflate(data []byte, originalLength int) []byte {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out := make([]byte, originalLength)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil
	}
	return out
}
