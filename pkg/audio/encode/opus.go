// ABOUTME: Ogg Opus interval encoder
// ABOUTME: Encodes a whole interval with libopus and wraps it in a fresh Ogg stream
package encode

import (
	"bytes"
	"fmt"

	"github.com/jamsync/jamsync-go/pkg/audio"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

const (
	// opusMaxPacket is the largest packet libopus will emit
	opusMaxPacket = 4000

	// oggGranuleRate is the fixed granule clock of Ogg Opus
	oggGranuleRate = 48000
)

// OpusEncoder encodes intervals as Ogg Opus streams
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int
	sequencer  rtp.Sequencer
	ssrc       uint32
	pcm        []int16
	packet     []byte
}

// NewOpus creates a new Opus interval encoder
func NewOpus(format audio.Format) (*OpusEncoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}

	if format.Channels != 1 && format.Channels != 2 {
		return nil, fmt.Errorf("unsupported channel count: %d (supported: 1, 2)", format.Channels)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	// Opus frame size depends on sample rate
	frameSize := format.SampleRate / 50 // 20ms frame

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: format.SampleRate,
		channels:   format.Channels,
		frameSize:  frameSize,
		sequencer:  rtp.NewRandomSequencer(),
		pcm:        make([]int16, frameSize*format.Channels),
		packet:     make([]byte, opusMaxPacket),
	}, nil
}

// Encode converts one interval of interleaved samples (in the encoder's
// channel layout) into an Ogg Opus stream with its own headers. A trailing
// partial frame is padded with silence.
func (e *OpusEncoder) Encode(samples []int32) ([]byte, error) {
	// Every interval starts from fresh codec state
	if err := e.encoder.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset opus encoder: %w", err)
	}

	var buf bytes.Buffer
	writer, err := oggwriter.NewWith(&buf, uint32(e.sampleRate), uint16(e.channels))
	if err != nil {
		return nil, fmt.Errorf("failed to create ogg writer: %w", err)
	}

	step := uint32(e.frameSize * oggGranuleRate / e.sampleRate)
	frameLen := e.frameSize * e.channels
	var timestamp uint32

	for off := 0; off < len(samples); off += frameLen {
		end := off + frameLen
		if end > len(samples) {
			end = len(samples)
		}

		n := 0
		for _, s := range samples[off:end] {
			e.pcm[n] = audio.SampleToInt16(s)
			n++
		}
		clear(e.pcm[n:])

		size, err := e.encoder.Encode(e.pcm, e.packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode error: %w", err)
		}

		packet := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         true,
				SequenceNumber: e.sequencer.NextSequenceNumber(),
				Timestamp:      timestamp,
				SSRC:           e.ssrc,
			},
			Payload: e.packet[:size],
		}
		if err := writer.WriteRTP(packet); err != nil {
			return nil, fmt.Errorf("failed to write ogg page: %w", err)
		}
		timestamp += step
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish ogg stream: %w", err)
	}

	return buf.Bytes(), nil
}

// FrameSize returns samples per channel in one Opus frame
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
