// Package axclock supplies the injectable clock and randomness the rest of
// the core depends on, so tests never touch the real wall clock per the
// "no direct global-clock reads" rule.
package axclock

import (
	"math/rand"
	"time"
)

// Clock returns the current wall-clock time. Production code uses System;
// tests substitute a Fake so timer and decay math is deterministic.
type Clock interface {
	Now() time.Time
}

// Random supplies the jitter source for the AXDP retry policy.
type Random interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
}

// System is the production Clock, backed by time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// SystemRandom is the production Random, backed by math/rand.
type SystemRandom struct {
	rnd *rand.Rand
}

func NewSystemRandom() *SystemRandom {
	return &SystemRandom{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (r *SystemRandom) Float64() float64 { return r.rnd.Float64() }

// Fake is a settable clock for tests; it never reads the real clock.
type Fake struct {
	t time.Time
}

func NewFake(t time.Time) *Fake { return &Fake{t: t} }

func (f *Fake) Now() time.Time { return f.t }

func (f *Fake) Set(t time.Time) { f.t = t }

func (f *Fake) Advance(d time.Duration) { f.t = f.t.Add(d) }

// FakeRandom returns a fixed sequence of values, cycling once exhausted.
type FakeRandom struct {
	values []float64
	idx    int
}

func NewFakeRandom(values ...float64) *FakeRandom {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &FakeRandom{values: values}
}

func (f *FakeRandom) Float64() float64 {
	v := f.values[f.idx%len(f.values)]
	f.idx++
	return v
}
