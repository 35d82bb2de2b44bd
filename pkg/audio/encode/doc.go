// ABOUTME: Interval encoder package
// ABOUTME: Provides Encoder interface and implementations for Ogg Opus and PCM
// Package encode produces interval payloads from PCM.
//
// Supports: Ogg Opus (each interval is a complete Ogg stream with OpusHead
// and OpusTags pages), PCM (16-bit and 24-bit).
//
// All encoders accept interleaved int32 samples in 24-bit range.
//
// Example:
//
//	encoder, err := encode.NewOpus(audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2})
//	interval, err := encoder.Encode(samples)
package encode
