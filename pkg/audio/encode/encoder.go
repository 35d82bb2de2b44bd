// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for interval encoders
package encode

import (
	"fmt"

	"github.com/jamsync/jamsync-go/pkg/audio"
)

// Encoder turns one interval of PCM into a self-contained payload
type Encoder interface {
	// Encode converts interleaved int32 samples in 24-bit range to an
	// interval payload. Every call produces an independent payload.
	Encode(samples []int32) ([]byte, error)

	// Close releases encoder resources
	Close() error
}

// New creates an encoder for the given format
func New(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case "opus":
		return NewOpus(format)
	case "pcm":
		return NewPCM(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}
