// ABOUTME: Tests for format sniffing and the auto decoder
// ABOUTME: Covers magic detection and rejection of unknown payloads
package decode

import (
	"errors"
	"testing"
)

// oggPage builds the head of an Ogg page with one segment holding packet
func oggPage(packet string) []byte {
	page := make([]byte, 27)
	copy(page, "OggS")
	page[26] = 1
	page = append(page, byte(len(packet)))
	return append(page, packet...)
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr error
	}{
		{name: "vorbis", data: oggPage("\x01vorbis\x00\x00\x00\x00"), want: "vorbis"},
		{name: "opus", data: oggPage("OpusHead\x01\x02"), want: "opus"},
		{name: "flac", data: []byte("fLaC\x00\x00\x00\x22"), want: "flac"},
		{name: "mp3 with id3", data: []byte("ID3\x04\x00"), want: "mp3"},
		{name: "mp3 frame sync", data: []byte{0xFF, 0xFB, 0x90, 0x00}, want: "mp3"},
		{name: "ogg with unknown packet", data: oggPage("Speex   "), wantErr: ErrUnknownFormat},
		{name: "truncated ogg", data: []byte("OggS\x00"), wantErr: ErrUnknownFormat},
		{name: "ogg with empty segment table", data: append([]byte("OggS"), make([]byte, 23)...), wantErr: ErrUnknownFormat},
		{name: "garbage", data: []byte("hello world"), wantErr: ErrUnknownFormat},
		{name: "empty", data: nil, wantErr: ErrUnknownFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sniff(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Sniff() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Sniff() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAutoDecoder_RejectsGarbage(t *testing.T) {
	dec := NewAuto()

	if err := dec.Reset([]byte("not audio")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Reset() error = %v, want ErrUnknownFormat", err)
	}
	if dec.Codec() != "" {
		t.Errorf("Codec() = %q after failed Reset, want empty", dec.Codec())
	}
	if _, err := dec.Decode(make([]int32, 4)); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Decode() error = %v, want ErrNotLoaded", err)
	}
	if dec.SampleRate() != 0 {
		t.Errorf("SampleRate() = %d, want 0", dec.SampleRate())
	}
}

func TestAutoDecoder_MalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"vorbis magic without headers", oggPage("\x01vorbis")},
		{"opus magic without body", oggPage("OpusHead")},
		{"flac magic without streaminfo", []byte("fLaC")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewAuto()
			if err := dec.Reset(tt.data); err == nil {
				t.Error("Reset() expected error for malformed payload")
			}
			if _, err := dec.Decode(make([]int32, 4)); !errors.Is(err, ErrNotLoaded) {
				t.Errorf("Decode() error = %v, want ErrNotLoaded", err)
			}
			dec.Close()
		})
	}
}
