// ABOUTME: Oto-based audio output implementation
// ABOUTME: Wraps the Source in an io.Reader that oto's player pulls 16-bit PCM from
package output

import (
	"fmt"
	"log"

	"github.com/ebitengine/oto/v3"
)

// Oto output implementation using oto library
type Oto struct {
	master

	otoCtx     *oto.Context
	player     *oto.Player
	reader     *sourceReader
	sampleRate int
	channels   int
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	o := &Oto{}
	o.init()
	return o
}

// Open initializes the output device. Oto always plays 16-bit.
func (o *Oto) Open(sampleRate, channels, bitDepth int, src Source) error {
	if bitDepth != 16 {
		log.Printf("Warning: oto only supports 16-bit output, ignoring requested bitDepth=%d", bitDepth)
	}

	// oto allows one context per process
	if o.otoCtx != nil && (o.sampleRate != sampleRate || o.channels != channels) {
		return fmt.Errorf("oto context already running at %dHz/%dch", o.sampleRate, o.channels)
	}

	if o.otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-readyChan

		o.otoCtx = ctx
		o.sampleRate = sampleRate
		o.channels = channels
	} else if err := o.otoCtx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}

	if o.player != nil {
		o.player.Close()
	}

	o.reader = &sourceReader{source: src, master: &o.master, channels: channels}
	o.player = o.otoCtx.NewPlayer(o.reader)
	o.player.Play()

	log.Printf("Audio output initialized: %dHz, %d channels (oto)", sampleRate, channels)

	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	return nil
}

// sourceReader renders 16-bit little-endian PCM on demand
type sourceReader struct {
	source   Source
	master   *master
	channels int
	buf      []int32
}

func (r *sourceReader) Read(p []byte) (int, error) {
	frameBytes := 2 * r.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	r.buf = scratch(r.buf, frames*r.channels)
	r.source.Render(r.buf)
	r.master.apply(r.buf)
	pack(p, r.buf, 16)

	return frames * frameBytes, nil
}
