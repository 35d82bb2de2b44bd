// ABOUTME: FLAC interval decoder
// ABOUTME: Decodes FLAC intervals frame by frame with mewkiz/flac
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jamsync/jamsync-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC intervals
type FLACDecoder struct {
	stream     *flac.Stream
	sampleRate int
	bitDepth   int
	left       []int32 // current frame, first channel
	right      []int32 // current frame, second channel (or first for mono)
	pos        int
}

// NewFLAC creates a new FLAC decoder
func NewFLAC() *FLACDecoder {
	return &FLACDecoder{}
}

// Reset parses the STREAMINFO block of a new interval
func (d *FLACDecoder) Reset(data []byte) error {
	if d.stream != nil {
		d.stream.Close()
		d.stream = nil
	}
	d.left, d.right, d.pos = nil, nil, 0

	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to read flac header: %w", err)
	}

	bits := int(stream.Info.BitsPerSample)
	if bits < 4 || bits > 32 {
		stream.Close()
		return fmt.Errorf("unsupported flac bit depth: %d", bits)
	}

	d.stream = stream
	d.sampleRate = int(stream.Info.SampleRate)
	d.bitDepth = bits
	return nil
}

// Decode pulls up to len(dst)/2 frames from the interval
func (d *FLACDecoder) Decode(dst []int32) (int, error) {
	if d.stream == nil {
		return 0, ErrNotLoaded
	}

	frames := len(dst) / audio.Channels
	out := 0

	for out < frames {
		if d.pos >= len(d.left) {
			f, err := d.stream.ParseNext()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return out, fmt.Errorf("flac decode failed: %w", err)
			}
			if len(f.Subframes) == 0 {
				continue
			}
			d.left = f.Subframes[0].Samples
			d.right = d.left
			if len(f.Subframes) > 1 {
				d.right = f.Subframes[1].Samples
			}
			d.pos = 0
			continue
		}

		putFrame(dst, out, d.scale(d.left[d.pos]), d.scale(d.right[d.pos]))
		d.pos++
		out++
	}

	return out, nil
}

// scale moves a sample of the stream's bit depth into 24-bit range
func (d *FLACDecoder) scale(s int32) int32 {
	if d.bitDepth < 24 {
		return s << (24 - d.bitDepth)
	}
	return s >> (d.bitDepth - 24)
}

// SampleRate returns the rate declared by STREAMINFO
func (d *FLACDecoder) SampleRate() int {
	return d.sampleRate
}

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	if d.stream != nil {
		err := d.stream.Close()
		d.stream = nil
		return err
	}
	return nil
}
