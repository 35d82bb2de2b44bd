// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Block types and sample conversion functions
// Package audio provides the sample types shared by the decoders, track
// streams and the mixer.
//
// Samples are int32 values in 24-bit range, interleaved stereo:
//   - Format: Describes a stream (codec, sample rate, channels, bit depth)
//   - Block: A span of decoded frames produced by a track stream
//
// Conversion helpers cover 16-bit, float32 and packed 24-bit samples:
//
//	format := audio.Format{
//	    Codec:      "opus",
//	    SampleRate: 48000,
//	    Channels:   audio.Channels,
//	    BitDepth:   16,
//	}
//
//	// Convert 16-bit sample to 24-bit range
//	sample24 := audio.SampleFromInt16(sample16)
package audio
