package callsign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClampsSSID(t *testing.T) {
	assert.Equal(t, 15, New("W0TST", 16).SSID)
	assert.Equal(t, 0, New("W0TST", -5).SSID)
	assert.Equal(t, 7, New("W0TST", 7).SSID)
}

func TestNewUppercasesAndTrims(t *testing.T) {
	a := New("  w0tst  ", 1)
	assert.Equal(t, "W0TST", a.Base)
}

func TestStringOmitsZeroSSID(t *testing.T) {
	assert.Equal(t, "W0TST", New("w0tst", 0).String())
	assert.Equal(t, "W0TST-5", New("w0tst", 5).String())
}

func TestParseRoundTrip(t *testing.T) {
	a, err := Parse("w0tst-5")
	require.NoError(t, err)
	assert.Equal(t, New("W0TST", 5), a)

	b, err := Parse("N0CALL")
	require.NoError(t, err)
	assert.Equal(t, 0, b.SSID)
}

func TestParseEmptyErrors(t *testing.T) {
	_, err := Parse("   ")
	assert.Error(t, err)
}

func TestKeyIgnoresCaseAndWhitespace(t *testing.T) {
	a := Address{Base: "w0tst", SSID: 3}
	b := Address{Base: " W0TST ", SSID: 3}
	assert.Equal(t, a.Key(), b.Key())
}

func TestPadBase(t *testing.T) {
	assert.Equal(t, "W0TST ", New("w0tst", 0).PadBase())
	assert.Len(t, New("W0TST", 0).PadBase(), 6)
}
