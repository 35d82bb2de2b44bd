// ABOUTME: PCM interval decoder
// ABOUTME: Decodes 16-bit and 24-bit little-endian PCM intervals
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/jamsync/jamsync-go/pkg/audio"
)

// PCMDecoder decodes raw PCM whose layout is declared out of band
type PCMDecoder struct {
	format audio.Format
	data   []byte
	pos    int
	loaded bool
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	if format.Channels != 1 && format.Channels != 2 {
		return nil, fmt.Errorf("unsupported channel count: %d (supported: 1, 2)", format.Channels)
	}

	if format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", format.SampleRate)
	}

	return &PCMDecoder{format: format}, nil
}

// Reset primes the decoder with a new interval
func (d *PCMDecoder) Reset(data []byte) error {
	d.data = data
	d.pos = 0
	d.loaded = true
	return nil
}

// Decode converts PCM bytes to stereo int32 frames
func (d *PCMDecoder) Decode(dst []int32) (int, error) {
	if !d.loaded {
		return 0, ErrNotLoaded
	}

	bytesPerSample := d.format.BitDepth / 8
	frameBytes := bytesPerSample * d.format.Channels

	frames := (len(d.data) - d.pos) / frameBytes
	if max := len(dst) / audio.Channels; frames > max {
		frames = max
	}

	for i := 0; i < frames; i++ {
		left := d.sample(d.pos)
		right := left
		if d.format.Channels == 2 {
			right = d.sample(d.pos + bytesPerSample)
		}
		putFrame(dst, i, left, right)
		d.pos += frameBytes
	}

	return frames, nil
}

// sample reads one sample at byte offset off
func (d *PCMDecoder) sample(off int) int32 {
	if d.format.BitDepth == 24 {
		return audio.SampleFrom24Bit([3]byte{d.data[off], d.data[off+1], d.data[off+2]})
	}
	return audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(d.data[off:])))
}

// SampleRate returns the declared sample rate
func (d *PCMDecoder) SampleRate() int {
	return d.format.SampleRate
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	d.data = nil
	d.loaded = false
	return nil
}
