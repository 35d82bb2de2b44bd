// ABOUTME: PCM interval encoder
// ABOUTME: Encodes int32 samples to 16-bit or 24-bit little-endian PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/jamsync/jamsync-go/pkg/audio"
)

// PCMEncoder encodes raw PCM intervals. The layout travels out of band.
type PCMEncoder struct {
	bytesPerSample int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMEncoder{bytesPerSample: format.BitDepth / 8}, nil
}

// Encode converts int32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	output := make([]byte, len(samples)*e.bytesPerSample)

	for i, sample := range samples {
		off := i * e.bytesPerSample
		if e.bytesPerSample == 3 {
			b := audio.SampleTo24Bit(sample)
			copy(output[off:off+3], b[:])
			continue
		}
		binary.LittleEndian.PutUint16(output[off:], uint16(audio.SampleToInt16(sample)))
	}

	return output, nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
