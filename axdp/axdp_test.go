package axdp

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func u32p(v uint32) *uint32 { return &v }

func TestHasMagic(t *testing.T) {
	assert.True(t, HasMagic([]byte("AXT1extra")))
	assert.False(t, HasMagic([]byte("AXT")))
	assert.False(t, HasMagic([]byte("BXT1")))
}

func TestChatRoundTrip(t *testing.T) {
	msg := Message{
		Type:      TypeChat,
		SessionID: 0,
		MessageID: 1,
		Payload:   []byte("hello, packet radio"),
	}
	enc := Encode(msg)
	got, consumed, ok := Decode(enc)
	require.True(t, ok)
	assert.Equal(t, len(enc), consumed)
	assert.Equal(t, msg.Type, got.Type)
	assert.Equal(t, msg.SessionID, got.SessionID)
	assert.Equal(t, msg.MessageID, got.MessageID)
	assert.Equal(t, msg.Payload, got.Payload)
}

func TestFileChunkRoundTrip(t *testing.T) {
	payload := []byte("chunk-data")
	crc := uint32(0xDEADBEEF)
	msg := Message{
		Type:         TypeFileChunk,
		SessionID:    7,
		MessageID:    42,
		ChunkIndex:   u32p(2),
		TotalChunks:  u32p(10),
		Payload:      payload,
		PayloadCRC32: &crc,
	}
	enc := Encode(msg)
	got, _, ok := Decode(enc)
	require.True(t, ok)
	assert.Equal(t, uint32(2), *got.ChunkIndex)
	assert.Equal(t, uint32(10), *got.TotalChunks)
	assert.Equal(t, payload, got.Payload)
	assert.Equal(t, crc, *got.PayloadCRC32)
}

func TestFileChunkInvariantChunkIndexLessThanTotal(t *testing.T) {
	crc := uint32(1)
	msg := Message{
		Type:         TypeFileChunk,
		ChunkIndex:   u32p(5),
		TotalChunks:  u32p(5),
		Payload:      []byte("x"),
		PayloadCRC32: &crc,
	}
	assert.Error(t, msg.Validate())
}

func TestFileMetaRoundTrip(t *testing.T) {
	sum := sha256.Sum256([]byte("file contents"))
	fm := FileMeta{
		Filename:    "test.txt",
		FileSize:    13,
		SHA256:      sum,
		ChunkSize:   128,
		Description: "a test file",
	}
	msg := Message{Type: TypeFileMeta, SessionID: 1, MessageID: 1, FileMeta: &fm}
	enc := Encode(msg)
	got, _, ok := Decode(enc)
	require.True(t, ok)
	require.NotNil(t, got.FileMeta)
	assert.Equal(t, fm, *got.FileMeta)
}

func TestAckNackRoundTrip(t *testing.T) {
	acked := uint32(99)
	msg := Message{Type: TypeAck, SessionID: 1, MessageID: 2, AckedMessageID: &acked}
	enc := Encode(msg)
	got, _, ok := Decode(enc)
	require.True(t, ok)
	assert.Equal(t, acked, *got.AckedMessageID)
}

func TestUnknownTLVRoundTrip(t *testing.T) {
	msg := Message{
		Type:      TypeChat,
		Payload:   []byte("hi"),
		Unknown:   []UnknownTLV{{Type: 0x7F, Value: []byte{1, 2, 3}}},
	}
	enc := Encode(msg)
	got, _, ok := Decode(enc)
	require.True(t, ok)
	require.Len(t, got.Unknown, 1)
	assert.Equal(t, byte(0x7F), got.Unknown[0].Type)
	assert.Equal(t, []byte{1, 2, 3}, got.Unknown[0].Value)
}

func TestTruncatedPrefixNeverPartiallySucceeds(t *testing.T) {
	msg := Message{Type: TypeChat, Payload: []byte("a longer chat payload for truncation testing")}
	enc := Encode(msg)
	for n := 0; n < len(enc); n++ {
		_, _, ok := Decode(enc[:n])
		assert.Falsef(t, ok, "prefix of length %d should not decode", n)
	}
	_, _, ok := Decode(enc)
	assert.True(t, ok)
}

func TestCapabilitiesRoundTrip(t *testing.T) {
	caps := Capabilities{
		MaxProtocolVersion: 3,
		CompressionAlgs:    []CompressionAlg{CompressionLZ4, CompressionDeflate},
		MaxChunkSize:       256,
	}
	msg := Message{Type: TypePing, Caps: &caps}
	enc := Encode(msg)
	got, _, ok := Decode(enc)
	require.True(t, ok)
	require.NotNil(t, got.Caps)
	assert.Equal(t, caps, *got.Caps)
}

func TestTransferMetricsRoundTrip(t *testing.T) {
	orig := uint64(1000)
	comp := uint64(400)
	alg := CompressionLZ4
	m := TransferMetrics{TotalBytes: 400, DurationSeconds: 2.5, OriginalSize: &orig, CompressedSize: &comp, Algorithm: &alg}
	msg := Message{Type: TypeAck, AckedMessageID: u32p(1), Metrics: &m}
	enc := Encode(msg)
	got, _, ok := Decode(enc)
	require.True(t, ok)
	require.NotNil(t, got.Metrics)
	assert.InDelta(t, 0.4, got.Metrics.Ratio(), 0.001)
	assert.InDelta(t, 60.0, got.Metrics.SavingsPercent(), 0.001)
}

func TestSackBitmapEncodeDecode(t *testing.T) {
	sack := NewSackBitmap(10, 20)
	sack.MarkReceived(10)
	sack.MarkReceived(11)
	sack.MarkReceived(13)
	msg := Message{Type: TypeChat, Payload: []byte("x"), Sack: sack}
	enc := Encode(msg)
	got, _, ok := Decode(enc)
	require.True(t, ok)
	require.NotNil(t, got.Sack)
	assert.True(t, got.Sack.IsReceived(10))
	assert.True(t, got.Sack.IsReceived(11))
	assert.False(t, got.Sack.IsReceived(12))
	assert.True(t, got.Sack.IsReceived(13))
	k, ok2 := got.Sack.HighestContiguous()
	assert.True(t, ok2)
	assert.Equal(t, uint32(11), k)
	assert.Equal(t, []uint32{12}, got.Sack.MissingChunks(2))
}

func TestSackBitmapBitsLength(t *testing.T) {
	s := NewSackBitmap(0, 17)
	assert.Len(t, s.Bits, 3) // ceil(17/8)
}

func TestDedupWindow(t *testing.T) {
	d := NewDedupWindow(2)
	assert.False(t, d.IsDuplicate(1, 100))
	assert.True(t, d.IsDuplicate(1, 100))
	assert.False(t, d.IsDuplicate(2, 100)) // different session never collides
	assert.False(t, d.IsDuplicate(1, 101)) // evicts (1,100)
	assert.False(t, d.IsDuplicate(1, 102)) // evicts (2,100)
	assert.False(t, d.IsDuplicate(1, 100), "evicted entry is forgotten")
}

func TestRetryPolicyCapsAtMaxInterval(t *testing.T) {
	p := RetryPolicy{BaseInterval: time.Second, MaxInterval: 10 * time.Second, MaxRetries: 20}
	for attempt := 0; attempt < 20; attempt++ {
		got := p.Interval(attempt, nil)
		assert.LessOrEqual(t, got, p.MaxInterval)
	}
	assert.Equal(t, p.MaxInterval, p.Interval(10, nil))
}

func TestRetryPolicyShouldRetry(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3}
	assert.True(t, p.ShouldRetry(0))
	assert.True(t, p.ShouldRetry(2))
	assert.False(t, p.ShouldRetry(3))
}

func TestEncodeDecodeRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "payload")
		sid := rapid.Uint32().Draw(rt, "sid")
		mid := rapid.Uint32().Draw(rt, "mid")
		msg := Message{Type: TypeChat, SessionID: sid, MessageID: mid, Payload: payload}
		enc := Encode(msg)
		got, consumed, ok := Decode(enc)
		require.True(rt, ok)
		assert.Equal(rt, len(enc), consumed)
		assert.Equal(rt, msg.SessionID, got.SessionID)
		assert.Equal(rt, msg.MessageID, got.MessageID)
		assert.Equal(rt, msg.Payload, got.Payload)
	})
}
