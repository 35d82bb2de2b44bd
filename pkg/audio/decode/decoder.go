// ABOUTME: Decoder interface definition
// ABOUTME: Streaming contract shared by all interval decoders
package decode

import (
	"fmt"

	"github.com/jamsync/jamsync-go/pkg/audio"
)

// Decoder decodes one interval at a time into stereo PCM int32 samples
type Decoder interface {
	// Reset discards all decode state and primes the decoder with a new
	// interval. The interval header is parsed here.
	Reset(data []byte) error

	// Decode writes up to len(dst)/2 stereo frames into dst and returns the
	// number of frames written. Zero frames with a nil error means the
	// interval is exhausted.
	Decode(dst []int32) (int, error)

	// SampleRate returns the rate declared by the loaded interval
	SampleRate() int

	// Close releases decoder resources
	Close() error
}

// New creates a decoder for the given format. An empty codec or "auto"
// selects the sniffing decoder.
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "", "auto":
		return NewAuto(), nil
	case "vorbis":
		return NewVorbis(), nil
	case "opus":
		return NewOpus(), nil
	case "flac":
		return NewFLAC(), nil
	case "mp3":
		return NewMP3(), nil
	case "pcm":
		return NewPCM(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}

// putFrame writes one stereo frame at index i
func putFrame(dst []int32, i int, left, right int32) {
	dst[i*audio.Channels] = left
	dst[i*audio.Channels+1] = right
}
