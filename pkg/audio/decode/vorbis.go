// ABOUTME: Ogg Vorbis interval decoder
// ABOUTME: Each interval is a self-contained Ogg Vorbis stream with its own headers
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jamsync/jamsync-go/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

// VorbisDecoder decodes Ogg Vorbis intervals
type VorbisDecoder struct {
	reader     *oggvorbis.Reader
	sampleRate int
	channels   int
	scratch    []float32
}

// NewVorbis creates a new Vorbis decoder
func NewVorbis() *VorbisDecoder {
	return &VorbisDecoder{}
}

// Reset parses the interval's identification and setup headers
func (d *VorbisDecoder) Reset(data []byte) error {
	d.reader = nil

	reader, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to read vorbis headers: %w", err)
	}

	if reader.Channels() < 1 {
		return fmt.Errorf("invalid vorbis channel count: %d", reader.Channels())
	}

	d.reader = reader
	d.sampleRate = reader.SampleRate()
	d.channels = reader.Channels()
	return nil
}

// Decode pulls up to len(dst)/2 frames from the interval
func (d *VorbisDecoder) Decode(dst []int32) (int, error) {
	if d.reader == nil {
		return 0, ErrNotLoaded
	}

	frames := len(dst) / audio.Channels
	need := frames * d.channels
	if cap(d.scratch) < need {
		d.scratch = make([]float32, need)
	}
	buf := d.scratch[:need]

	for {
		n, err := d.reader.Read(buf)
		got := n / d.channels
		for i := 0; i < got; i++ {
			left := audio.SampleFromFloat32(buf[i*d.channels])
			right := left
			if d.channels > 1 {
				right = audio.SampleFromFloat32(buf[i*d.channels+1])
			}
			putFrame(dst, i, left, right)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return got, nil
			}
			return got, fmt.Errorf("vorbis decode failed: %w", err)
		}
		// Header-only packets produce no samples, keep pulling
		if got > 0 || frames == 0 {
			return got, nil
		}
	}
}

// SampleRate returns the rate declared by the identification header
func (d *VorbisDecoder) SampleRate() int {
	return d.sampleRate
}

// Close releases decoder resources
func (d *VorbisDecoder) Close() error {
	d.reader = nil
	return nil
}
