// ABOUTME: Format-sniffing interval decoder
// ABOUTME: Picks a codec per interval from its magic bytes and delegates to it
package decode

import (
	"bytes"
	"fmt"
)

const (
	// oggHeaderSize is the fixed part of an Ogg page header, before the segment table
	oggHeaderSize = 27
)

// Sniff returns the codec name of an interval payload
func Sniff(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte("OggS")):
		return sniffOgg(data)
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac", nil
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3", nil
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3", nil
	}
	return "", ErrUnknownFormat
}

// sniffOgg inspects the first packet of the first Ogg page
func sniffOgg(data []byte) (string, error) {
	if len(data) < oggHeaderSize {
		return "", ErrUnknownFormat
	}
	start := oggHeaderSize + int(data[oggHeaderSize-1])
	if start > len(data) {
		return "", ErrUnknownFormat
	}

	packet := data[start:]
	switch {
	case bytes.HasPrefix(packet, []byte("\x01vorbis")):
		return "vorbis", nil
	case bytes.HasPrefix(packet, []byte("OpusHead")):
		return "opus", nil
	}
	return "", ErrUnknownFormat
}

// AutoDecoder sniffs every interval and forwards to a codec-specific decoder.
// Delegates are created on first use and kept for reuse.
type AutoDecoder struct {
	delegates map[string]Decoder
	current   Decoder
	codec     string
}

// NewAuto creates a new sniffing decoder
func NewAuto() *AutoDecoder {
	return &AutoDecoder{delegates: make(map[string]Decoder)}
}

// Reset sniffs the interval and primes the matching decoder
func (d *AutoDecoder) Reset(data []byte) error {
	d.current = nil
	d.codec = ""

	codec, err := Sniff(data)
	if err != nil {
		return err
	}

	dec, ok := d.delegates[codec]
	if !ok {
		dec, err = d.create(codec)
		if err != nil {
			return err
		}
		d.delegates[codec] = dec
	}

	if err := dec.Reset(data); err != nil {
		return err
	}
	d.current = dec
	d.codec = codec
	return nil
}

func (d *AutoDecoder) create(codec string) (Decoder, error) {
	switch codec {
	case "vorbis":
		return NewVorbis(), nil
	case "opus":
		return NewOpus(), nil
	case "flac":
		return NewFLAC(), nil
	case "mp3":
		return NewMP3(), nil
	}
	return nil, fmt.Errorf("no decoder for codec: %s", codec)
}

// Codec returns the codec of the loaded interval, or "" when none is loaded
func (d *AutoDecoder) Codec() string {
	return d.codec
}

// Decode forwards to the decoder of the loaded interval
func (d *AutoDecoder) Decode(dst []int32) (int, error) {
	if d.current == nil {
		return 0, ErrNotLoaded
	}
	return d.current.Decode(dst)
}

// SampleRate returns the rate of the loaded interval, 0 when none is loaded
func (d *AutoDecoder) SampleRate() int {
	if d.current == nil {
		return 0
	}
	return d.current.SampleRate()
}

// Close closes every delegate
func (d *AutoDecoder) Close() error {
	var firstErr error
	for name, dec := range d.delegates {
		if err := dec.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s decoder: %w", name, err)
		}
	}
	d.delegates = make(map[string]Decoder)
	d.current = nil
	d.codec = ""
	return firstErr
}
