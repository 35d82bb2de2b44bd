// ABOUTME: Ogg Opus interval decoder
// ABOUTME: Demuxes Ogg pages with pion's oggreader and decodes with libopus
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jamsync/jamsync-go/pkg/audio"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"gopkg.in/hraban/opus.v2"
)

const (
	// OpusSampleRate is the rate libopus always decodes to here
	OpusSampleRate = 48000

	// opusMaxFrame is 120ms at 48kHz, the largest Opus frame
	opusMaxFrame = 5760
)

// OpusDecoder decodes Ogg Opus intervals.
// Pages are expected to carry one Opus packet each, as oggwriter produces.
type OpusDecoder struct {
	reader   *oggreader.OggReader
	decoder  *opus.Decoder
	channels int
	preSkip  int
	pcm      []int16
	pending  []int16
}

// NewOpus creates a new Opus decoder
func NewOpus() *OpusDecoder {
	return &OpusDecoder{}
}

// Reset reads the OpusHead page and starts a fresh libopus decoder
func (d *OpusDecoder) Reset(data []byte) error {
	d.reader = nil
	d.pending = nil

	reader, header, err := oggreader.NewWith(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to read opus header: %w", err)
	}

	channels := int(header.Channels)
	if channels != 1 && channels != 2 {
		return fmt.Errorf("unsupported opus channel count: %d", channels)
	}

	// libopus decoders cannot be reinitialized, so each interval gets its own
	dec, err := opus.NewDecoder(OpusSampleRate, channels)
	if err != nil {
		return fmt.Errorf("failed to create opus decoder: %w", err)
	}
	d.decoder = dec

	if cap(d.pcm) < opusMaxFrame*channels {
		d.pcm = make([]int16, opusMaxFrame*channels)
	}

	d.reader = reader
	d.channels = channels
	d.preSkip = int(header.PreSkip)
	return nil
}

// Decode pulls up to len(dst)/2 frames from the interval
func (d *OpusDecoder) Decode(dst []int32) (int, error) {
	if d.reader == nil {
		return 0, ErrNotLoaded
	}

	frames := len(dst) / audio.Channels
	out := 0

	for out < frames {
		if len(d.pending) == 0 {
			if err := d.nextPacket(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return out, err
			}
			continue
		}

		for len(d.pending) >= d.channels && out < frames {
			left := audio.SampleFromInt16(d.pending[0])
			right := left
			if d.channels == 2 {
				right = audio.SampleFromInt16(d.pending[1])
			}
			putFrame(dst, out, left, right)
			d.pending = d.pending[d.channels:]
			out++
		}
	}

	return out, nil
}

// nextPacket decodes the next audio page into d.pending
func (d *OpusDecoder) nextPacket() error {
	for {
		payload, _, err := d.reader.ParseNextPage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return io.EOF
			}
			return fmt.Errorf("failed to read opus page: %w", err)
		}

		if bytes.HasPrefix(payload, []byte("OpusTags")) || len(payload) == 0 {
			continue
		}

		n, err := d.decoder.Decode(payload, d.pcm)
		if err != nil {
			return fmt.Errorf("opus decode failed: %w", err)
		}

		decoded := d.pcm[:n*d.channels]
		if d.preSkip > 0 {
			skip := d.preSkip
			if skip > n {
				skip = n
			}
			decoded = decoded[skip*d.channels:]
			d.preSkip -= skip
		}

		if len(decoded) > 0 {
			d.pending = decoded
			return nil
		}
	}
}

// SampleRate returns the decode rate
func (d *OpusDecoder) SampleRate() int {
	return OpusSampleRate
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	d.reader = nil
	d.pending = nil
	return nil
}
