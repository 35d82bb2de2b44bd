// ABOUTME: Mixer implementation
// ABOUTME: Channel strips over track streams, summed into the output block
package mixer

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jamsync/jamsync-go/pkg/audio"
	"github.com/jamsync/jamsync-go/pkg/audio/resample"
	"github.com/jamsync/jamsync-go/pkg/track"
)

// strip is one track in the mix. settings and peak are shared with the
// control side; resampler and buf belong to the render thread.
type strip struct {
	stream   *track.Stream
	settings atomic.Pointer[Settings]
	peak     atomic.Int32

	resampler  *resample.Resampler
	resampling bool
	buf        []int32
}

// StripState is a point-in-time view of a strip
type StripState struct {
	Key        track.Key
	Settings   Settings
	Playing    bool
	Pending    int
	SampleRate int
	Underruns  int
	Peak       float64 // last block's peak, 0..1
}

// Mixer sums track streams at the output sample rate
type Mixer struct {
	sampleRate int
	clock      *IntervalClock

	mu     sync.Mutex // control path only
	strips map[track.Key]*strip

	live atomic.Pointer[[]*strip] // render snapshot
	acc  []int64                  // render thread only
}

// New creates a mixer rendering at sampleRate
func New(sampleRate int) *Mixer {
	m := &Mixer{
		sampleRate: sampleRate,
		clock:      NewIntervalClock(sampleRate),
		strips:     make(map[track.Key]*strip),
	}
	m.publish()
	return m
}

// SampleRate returns the output rate
func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

// Clock returns the interval clock
func (m *Mixer) Clock() *IntervalClock {
	return m.clock
}

// Add puts a stream into the mix, replacing any stream with the same key
func (m *Mixer) Add(stream *track.Stream, settings Settings) {
	s := &strip{stream: stream}
	settings = settings.Normalize()
	s.settings.Store(&settings)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.strips[stream.Key()] = s
	m.publish()
}

// Remove takes a stream out of the mix and returns it
func (m *Mixer) Remove(key track.Key) (*track.Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.strips[key]
	if !ok {
		return nil, false
	}
	delete(m.strips, key)
	m.publish()
	return s.stream, true
}

// Stream returns the stream for key
func (m *Mixer) Stream(key track.Key) (*track.Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.strips[key]
	if !ok {
		return nil, false
	}
	return s.stream, true
}

// SetSettings replaces a strip's settings and returns the normalized value
func (m *Mixer) SetSettings(key track.Key, settings Settings) (Settings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.strips[key]
	if !ok {
		return Settings{}, false
	}
	settings = settings.Normalize()
	s.settings.Store(&settings)
	return settings, true
}

// Settings returns a strip's settings
func (m *Mixer) Settings(key track.Key) (Settings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.strips[key]
	if !ok {
		return Settings{}, false
	}
	return *s.settings.Load(), true
}

// Keys returns the keys of every strip, sorted
func (m *Mixer) Keys() []track.Key {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]track.Key, 0, len(m.strips))
	for k := range m.strips {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// Snapshot returns the state of every strip, sorted by key
func (m *Mixer) Snapshot() []StripState {
	strips := *m.live.Load()
	states := make([]StripState, 0, len(strips))
	for _, s := range strips {
		states = append(states, StripState{
			Key:        s.stream.Key(),
			Settings:   *s.settings.Load(),
			Playing:    s.stream.Playing(),
			Pending:    s.stream.Pending(),
			SampleRate: s.stream.SampleRate(),
			Underruns:  s.stream.Underruns(),
			Peak:       float64(s.peak.Load()) / audio.Max24Bit,
		})
	}
	return states
}

// publish rebuilds the render snapshot (must hold m.mu)
func (m *Mixer) publish() {
	strips := make([]*strip, 0, len(m.strips))
	for _, s := range m.strips {
		strips = append(strips, s)
	}
	sort.Slice(strips, func(i, j int) bool {
		return keyLess(strips[i].stream.Key(), strips[j].stream.Key())
	})
	m.live.Store(&strips)
}

// Render fills out with the next mixed block of interleaved stereo
func (m *Mixer) Render(out []int32) {
	frames := len(out) / audio.Channels
	if cap(m.acc) < len(out) {
		m.acc = make([]int64, len(out))
	}
	acc := m.acc[:len(out)]
	clear(acc)

	strips := *m.live.Load()
	for _, s := range strips {
		s.peak.Store(0)
	}

	pos := 0
	for pos < frames {
		if m.clock.Boundary() {
			for _, s := range strips {
				s.stream.BeginNextInterval()
			}
		}

		chunk := frames - pos
		if r := m.clock.Remaining(); r < chunk {
			chunk = r
		}

		for _, s := range strips {
			m.mixStrip(s, acc[pos*audio.Channels:(pos+chunk)*audio.Channels], chunk)
		}

		m.clock.Advance(chunk)
		pos += chunk
	}

	for i, v := range acc {
		out[i] = audio.Clip24(v)
	}
}

// mixStrip renders one strip and adds it into acc
func (m *Mixer) mixStrip(s *strip, acc []int64, frames int) {
	if !s.stream.Playing() {
		s.resampling = false
		return
	}

	var samples []int32
	if s.stream.NeedsResample(m.sampleRate) {
		rate := s.stream.SampleRate()
		if s.resampler == nil {
			s.resampler = resample.New(rate, m.sampleRate, audio.Channels)
		} else if !s.resampling {
			s.resampler.Reset()
		}
		s.resampler.SetInputRate(rate)
		s.resampling = true

		block := s.stream.Render(s.resampler.InputFramesNeeded(frames))
		if cap(s.buf) < frames*audio.Channels {
			s.buf = make([]int32, frames*audio.Channels)
		}
		n := s.resampler.Resample(block.Samples, s.buf[:frames*audio.Channels])
		samples = s.buf[:n]
	} else {
		s.resampling = false
		block := s.stream.Render(frames)
		samples = block.Samples[:block.Frames*audio.Channels]
	}

	left, right := s.settings.Load().channelGains()
	if left == 0 && right == 0 {
		return
	}

	var peak int64
	for i := 0; i+1 < len(samples); i += audio.Channels {
		l := int64(math.Round(float64(samples[i]) * left))
		r := int64(math.Round(float64(samples[i+1]) * right))
		acc[i] += l
		acc[i+1] += r
		peak = max(peak, abs(l), abs(r))
	}
	if peak > audio.Max24Bit {
		peak = audio.Max24Bit
	}
	if int32(peak) > s.peak.Load() {
		s.peak.Store(int32(peak))
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func keyLess(a, b track.Key) bool {
	if a.User != b.User {
		return a.User < b.User
	}
	return a.Channel < b.Channel
}

func sortKeys(keys []track.Key) {
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
}
