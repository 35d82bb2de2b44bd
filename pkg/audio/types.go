// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats, rendered blocks and sample conversions
package audio

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// Channels is the interleaved channel count used by the render path
	Channels = 2
)

// Format describes an audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Block is a rendered run of interleaved stereo frames.
// Samples holds Frames*Channels values in 24-bit range.
type Block struct {
	Samples    []int32
	Frames     int
	SampleRate int
}

// Silent reports whether the block carries no decoded audio
func (b Block) Silent() bool {
	for _, s := range b.Samples[:b.Frames*Channels] {
		if s != 0 {
			return false
		}
	}
	return true
}

// Silence zeroes the first frames of buf and returns it as a block
func Silence(buf []int32, frames, sampleRate int) Block {
	n := frames * Channels
	clear(buf[:n])
	return Block{Samples: buf[:n], Frames: frames, SampleRate: sampleRate}
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleFromFloat32 converts a [-1, 1] float sample to 24-bit range with clipping
func SampleFromFloat32(sample float32) int32 {
	return Clip24(int64(sample * Max24Bit))
}

// Clip24 clamps a wide sample into the 24-bit range
func Clip24(v int64) int32 {
	if v > Max24Bit {
		return Max24Bit
	}
	if v < Min24Bit {
		return Min24Bit
	}
	return int32(v)
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
