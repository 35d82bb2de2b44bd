// ABOUTME: Test tone generator for virtual participants
// ABOUTME: Continuous sine waves in 24-bit interleaved stereo
package feed

import (
	"math"

	"github.com/jamsync/jamsync-go/pkg/audio"
)

// ToneSource generates a continuous sine wave
type ToneSource struct {
	frequency   float64
	sampleRate  int
	amplitude   float64
	sampleIndex uint64
}

// NewToneSource creates a tone generator
func NewToneSource(frequency float64, sampleRate int) *ToneSource {
	return &ToneSource{
		frequency:  frequency,
		sampleRate: sampleRate,
		amplitude:  0.25,
	}
}

// toneFrequency spaces participants a major third apart from A3
func toneFrequency(i int) float64 {
	return 220.0 * math.Pow(2, float64(i*4)/12)
}

// Read fills samples with the next len(samples)/2 stereo frames
func (s *ToneSource) Read(samples []int32) int {
	frames := len(samples) / audio.Channels
	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.sampleRate)
		v := int32(math.Sin(2*math.Pi*s.frequency*t) * s.amplitude * audio.Max24Bit)
		samples[i*2] = v
		samples[i*2+1] = v
	}
	s.sampleIndex += uint64(frames)
	return frames
}

// Frequency returns the tone frequency in Hz
func (s *ToneSource) Frequency() float64 { return s.frequency }
