package kiss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRoundTripWithEscapes(t *testing.T) {
	// Seed scenario S1.
	payload := []byte{0x41, 0xC0, 0x42, 0xDB, 0x43, 0xC0, 0xDB, 0x44}
	encoded := Encode(0, CmdDataFrame, payload)

	p := NewParser()
	frames := p.Feed(encoded)
	require.Len(t, frames, 1)
	assert.Equal(t, payload, frames[0].Payload)
	assert.Equal(t, CmdDataFrame, frames[0].Cmd)
}

func TestParserIsResumableAcrossFeeds(t *testing.T) {
	payload := []byte("hello world")
	encoded := Encode(2, CmdDataFrame, payload)

	p := NewParser()
	var frames []Frame
	for i := 0; i < len(encoded); i++ {
		frames = append(frames, p.Feed(encoded[i:i+1])...)
	}
	require.Len(t, frames, 1)
	assert.Equal(t, payload, frames[0].Payload)
	assert.Equal(t, 2, frames[0].Port)
}

func TestParserNeverPanicsOnGarbage(t *testing.T) {
	p := NewParser()
	garbage := []byte{0xDB, 0xDB, 0xFF, 0xC0, 0xDB, 0x00, 0xC0, 0xC0, 0xC0}
	assert.NotPanics(t, func() {
		p.Feed(garbage)
	})
}

func TestParserDiscardsAbandonedFrameOnOverflow(t *testing.T) {
	p := NewParser()
	huge := make([]byte, MaxFrameLen+10)
	for i := range huge {
		huge[i] = 0x41
	}
	frame := append([]byte{FEND, 0x00}, huge...)
	frame = append(frame, FEND)

	frames := p.Feed(frame)
	assert.Empty(t, frames)
}

func TestMultipleFramesInOneFeed(t *testing.T) {
	p := NewParser()
	var buf []byte
	buf = append(buf, Encode(0, CmdDataFrame, []byte("one"))...)
	buf = append(buf, Encode(0, CmdDataFrame, []byte("two"))...)

	frames := p.Feed(buf)
	require.Len(t, frames, 2)
	assert.Equal(t, "one", string(frames[0].Payload))
	assert.Equal(t, "two", string(frames[1].Payload))
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 256).Draw(rt, "payload")
		port := rapid.IntRange(0, 15).Draw(rt, "port")
		cmd := rapid.IntRange(0, 15).Draw(rt, "cmd")

		encoded := Encode(port, cmd, payload)
		p := NewParser()
		frames := p.Feed(encoded)
		require.Len(rt, frames, 1)
		assert.Equal(rt, payload, frames[0].Payload)
		assert.Equal(rt, port, frames[0].Port)
		assert.Equal(rt, cmd, frames[0].Cmd)
	})
}
