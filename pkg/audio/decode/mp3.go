// ABOUTME: MP3 interval decoder
// ABOUTME: Decodes MP3 intervals to int32 samples with go-mp3
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jamsync/jamsync-go/pkg/audio"
)

// mp3FrameBytes is one int16 stereo frame as go-mp3 emits it
const mp3FrameBytes = 4

// MP3Decoder decodes MP3 intervals
type MP3Decoder struct {
	decoder *mp3.Decoder
	scratch []byte
	done    bool
}

// NewMP3 creates a new MP3 decoder
func NewMP3() *MP3Decoder {
	return &MP3Decoder{}
}

// Reset parses the first MPEG frame header of a new interval
func (d *MP3Decoder) Reset(data []byte) error {
	d.decoder = nil
	d.done = false

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	d.decoder = decoder
	return nil
}

// Decode pulls up to len(dst)/2 frames from the interval
func (d *MP3Decoder) Decode(dst []int32) (int, error) {
	if d.decoder == nil {
		return 0, ErrNotLoaded
	}
	if d.done {
		return 0, nil
	}

	need := (len(dst) / audio.Channels) * mp3FrameBytes
	if cap(d.scratch) < need {
		d.scratch = make([]byte, need)
	}
	buf := d.scratch[:need]

	n, err := io.ReadFull(d.decoder, buf)
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("mp3 decode error: %w", err)
		}
		d.done = true
	}

	frames := n / mp3FrameBytes
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(buf[i*mp3FrameBytes:]))
		right := int16(binary.LittleEndian.Uint16(buf[i*mp3FrameBytes+2:]))
		putFrame(dst, i, audio.SampleFromInt16(left), audio.SampleFromInt16(right))
	}

	return frames, nil
}

// SampleRate returns the rate of the first MPEG frame
func (d *MP3Decoder) SampleRate() int {
	if d.decoder == nil {
		return 0
	}
	return d.decoder.SampleRate()
}

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	d.decoder = nil
	return nil
}
