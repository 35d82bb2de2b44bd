// ABOUTME: File playback source for a virtual participant
// ABOUTME: Decodes a whole audio file at startup and loops it
package feed

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamsync/jamsync-go/pkg/audio"
	"github.com/jamsync/jamsync-go/pkg/audio/decode"
	"github.com/jamsync/jamsync-go/pkg/audio/resample"
)

// decodeChunk is the number of frames pulled per Decode call
const decodeChunk = 4096

// FileSource loops decoded file audio at the session rate
type FileSource struct {
	name    string
	samples []int32
	pos     int
}

// NewFileSource decodes path (Ogg Vorbis/Opus, FLAC or MP3) and resamples
// it to sampleRate
func NewFileSource(path string, sampleRate int) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}

	samples, rate, err := decodeAll(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("audio file has no samples: %s", path)
	}

	if rate != sampleRate {
		r := resample.New(rate, sampleRate, audio.Channels)
		out := make([]int32, (r.OutputFramesFor(len(samples)/audio.Channels)+1)*audio.Channels)
		n := r.Resample(samples, out)
		samples = out[:n]
		log.Printf("Resampled %s from %dHz to %dHz", filepath.Base(path), rate, sampleRate)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &FileSource{name: name, samples: samples}, nil
}

// decodeAll runs a decoder over data until it is exhausted
func decodeAll(data []byte) ([]int32, int, error) {
	dec := decode.NewAuto()
	defer dec.Close()

	if err := dec.Reset(data); err != nil {
		return nil, 0, err
	}

	var samples []int32
	buf := make([]int32, decodeChunk*audio.Channels)
	for {
		n, err := dec.Decode(buf)
		samples = append(samples, buf[:n*audio.Channels]...)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			break
		}
	}
	return samples, dec.SampleRate(), nil
}

// Name returns the file name without extension
func (s *FileSource) Name() string { return s.name }

// Frames returns the loop length
func (s *FileSource) Frames() int { return len(s.samples) / audio.Channels }

// Read fills samples from the loop, wrapping at the end
func (s *FileSource) Read(samples []int32) int {
	for off := 0; off < len(samples); {
		n := copy(samples[off:], s.samples[s.pos:])
		off += n
		s.pos = (s.pos + n) % len(s.samples)
	}
	return len(samples) / audio.Channels
}
