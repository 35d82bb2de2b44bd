// ABOUTME: Audio output interface definition
// ABOUTME: Pull-model playback backends driven by a render Source
package output

import (
	"sync/atomic"

	"github.com/jamsync/jamsync-go/pkg/audio"
)

// Source fills out with the next len(out) interleaved samples.
// It is called from the device thread and must not block.
type Source interface {
	Render(out []int32)
}

// SourceFunc adapts a function to Source
type SourceFunc func(out []int32)

// Render calls f(out)
func (f SourceFunc) Render(out []int32) { f(out) }

// Output represents an audio output device that pulls from a Source
type Output interface {
	// Open initializes the device and starts pulling from src
	Open(sampleRate, channels, bitDepth int, src Source) error

	// Close stops playback and releases output resources
	Close() error

	// SetVolume sets the master volume (0-100)
	SetVolume(volume int)

	// SetMuted sets the master mute
	SetMuted(muted bool)

	// Volume returns the master volume
	Volume() int

	// Muted returns the master mute
	Muted() bool
}

// New returns the backend with the given name
func New(backend string) (Output, bool) {
	switch backend {
	case "", "malgo":
		return NewMalgo(), true
	case "oto":
		return NewOto(), true
	case "null":
		return NewNull(), true
	}
	return nil, false
}

// master holds the volume and mute shared by every backend.
// Both are read from the device thread.
type master struct {
	volume atomic.Int32
	muted  atomic.Bool
}

func (m *master) init() {
	m.volume.Store(100)
}

// SetVolume sets the volume (0-100)
func (m *master) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	m.volume.Store(int32(volume))
}

// SetMuted sets mute state
func (m *master) SetMuted(muted bool) {
	m.muted.Store(muted)
}

// Volume returns current volume
func (m *master) Volume() int {
	return int(m.volume.Load())
}

// Muted returns mute state
func (m *master) Muted() bool {
	return m.muted.Load()
}

// apply scales samples in place with clipping protection
func (m *master) apply(samples []int32) {
	if m.muted.Load() {
		clear(samples)
		return
	}
	volume := m.volume.Load()
	if volume == 100 {
		return
	}
	for i, sample := range samples {
		samples[i] = audio.Clip24(int64(sample) * int64(volume) / 100)
	}
}

// pack converts int32 samples to little-endian device bytes
func pack(dst []byte, samples []int32, bitDepth int) {
	switch bitDepth {
	case 16:
		for i, sample := range samples {
			s := audio.SampleToInt16(sample)
			dst[i*2] = byte(s)
			dst[i*2+1] = byte(s >> 8)
		}
	case 24:
		for i, sample := range samples {
			dst[i*3] = byte(sample)
			dst[i*3+1] = byte(sample >> 8)
			dst[i*3+2] = byte(sample >> 16)
		}
	case 32:
		for i, sample := range samples {
			// Shift 24-bit value to upper bits of 32-bit container
			s := sample << 8
			dst[i*4] = byte(s)
			dst[i*4+1] = byte(s >> 8)
			dst[i*4+2] = byte(s >> 16)
			dst[i*4+3] = byte(s >> 24)
		}
	}
}

// scratch returns buf resized to n samples, growing only when needed
func scratch(buf []int32, n int) []int32 {
	if cap(buf) < n {
		return make([]int32, n)
	}
	return buf[:n]
}
