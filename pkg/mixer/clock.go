// ABOUTME: Interval clock driven by rendered frames
// ABOUTME: Signals interval boundaries and applies tempo changes at the next one
package mixer

import (
	"sync/atomic"

	"github.com/jamsync/jamsync-go/pkg/session"
)

// IntervalClock tracks the position inside the current interval.
// Advance is called by the render thread only; every other method is safe
// from any goroutine.
type IntervalClock struct {
	sampleRate int

	pending   atomic.Uint64 // bpm<<32 | bpi, 0 when nothing pending
	bpm       atomic.Int32
	bpi       atomic.Int32
	length    atomic.Int64 // frames in the current interval
	position  atomic.Int64 // frames rendered in the current interval
	intervals atomic.Int64 // boundaries crossed
	started   atomic.Bool
}

// NewIntervalClock creates a clock at the default tempo. The first Advance
// crosses a boundary immediately.
func NewIntervalClock(sampleRate int) *IntervalClock {
	c := &IntervalClock{sampleRate: sampleRate}
	c.apply(session.DefaultBpm, session.DefaultBpi)
	return c
}

// SetTempo schedules a tempo for the next boundary
func (c *IntervalClock) SetTempo(bpm, bpi int) {
	if bpm <= 0 || bpi <= 0 {
		return
	}
	c.pending.Store(uint64(bpm)<<32 | uint64(bpi))
}

// Reset restarts the clock so the next Advance begins a new interval
func (c *IntervalClock) Reset() {
	c.started.Store(false)
	c.position.Store(0)
}

// Remaining returns frames left before the next boundary. Zero means a
// boundary is due now.
func (c *IntervalClock) Remaining() int {
	if !c.started.Load() {
		return 0
	}
	return int(c.length.Load() - c.position.Load())
}

// Boundary crosses an interval boundary if one is due and reports whether
// it did. Pending tempo takes effect here.
func (c *IntervalClock) Boundary() bool {
	if c.Remaining() > 0 {
		return false
	}
	if p := c.pending.Swap(0); p != 0 {
		c.apply(int(p>>32), int(p&0xFFFFFFFF))
	}
	c.position.Store(0)
	c.started.Store(true)
	c.intervals.Add(1)
	return true
}

// Advance moves the clock forward by frames
func (c *IntervalClock) Advance(frames int) {
	c.position.Add(int64(frames))
}

func (c *IntervalClock) apply(bpm, bpi int) {
	c.bpm.Store(int32(bpm))
	c.bpi.Store(int32(bpi))
	n := session.IntervalFrames(c.sampleRate, bpm, bpi)
	if n < 1 {
		n = 1
	}
	c.length.Store(int64(n))
}

// Tempo returns the tempo of the current interval
func (c *IntervalClock) Tempo() (bpm, bpi int) {
	return int(c.bpm.Load()), int(c.bpi.Load())
}

// IntervalFrames returns the length of the current interval
func (c *IntervalClock) IntervalFrames() int {
	return int(c.length.Load())
}

// Intervals returns the number of boundaries crossed
func (c *IntervalClock) Intervals() int64 {
	return c.intervals.Load()
}

// Progress returns the position in the current interval in [0, 1)
func (c *IntervalClock) Progress() float64 {
	length := c.length.Load()
	if length == 0 {
		return 0
	}
	return float64(c.position.Load()) / float64(length)
}

// Beat returns the zero-based beat within the current interval
func (c *IntervalClock) Beat() int {
	bpi := int(c.bpi.Load())
	beat := int(c.Progress() * float64(bpi))
	if beat >= bpi {
		beat = bpi - 1
	}
	return beat
}
