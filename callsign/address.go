// Package callsign implements the AX.25 station address: a callsign base
// of up to six characters plus an SSID 0..15.
package callsign

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is an AX.25 station address. Base is always uppercased and
// trimmed; SSID is clamped to 0..15 on construction.
type Address struct {
	Base string
	SSID int
}

// New builds an Address, uppercasing and trimming base and clamping ssid
// to the 0..15 range the AX.25 control byte can carry.
func New(base string, ssid int) Address {
	b := strings.ToUpper(strings.TrimSpace(base))
	if len(b) > 6 {
		b = b[:6]
	}
	return Address{Base: b, SSID: clampSSID(ssid)}
}

func clampSSID(ssid int) int {
	if ssid < 0 {
		return 0
	}
	if ssid > 15 {
		return 15
	}
	return ssid
}

// Parse accepts "BASE" or "BASE-SSID" and normalizes per New.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("callsign: empty address")
	}
	base, ssidStr, hasSSID := strings.Cut(s, "-")
	ssid := 0
	if hasSSID {
		n, err := strconv.Atoi(ssidStr)
		if err != nil {
			return Address{}, fmt.Errorf("callsign: invalid ssid in %q: %w", s, err)
		}
		ssid = n
	}
	return New(base, ssid), nil
}

// Key returns a comparison/hash key that ignores whitespace and case
// (New already normalizes both, so Key is just the struct itself, but
// callers that built an Address by hand should prefer this).
func (a Address) Key() Address {
	return New(a.Base, a.SSID)
}

// String renders "BASE" or "BASE-SSID", omitting the SSID when zero.
func (a Address) String() string {
	if a.SSID == 0 {
		return a.Base
	}
	return fmt.Sprintf("%s-%d", a.Base, a.SSID)
}

// PadBase returns the base padded with trailing spaces to 6 characters,
// as required on the wire.
func (a Address) PadBase() string {
	b := a.Base
	for len(b) < 6 {
		b += " "
	}
	return b
}

// IsZero reports whether this is the zero-value Address (no base).
func (a Address) IsZero() bool {
	return a.Base == "" && a.SSID == 0
}
