// ABOUTME: Interval decoder package for jam session tracks
// ABOUTME: Provides the streaming Decoder contract, codec implementations and Session
// Package decode turns compressed intervals into PCM on demand.
//
// Supports: Ogg Vorbis, Ogg Opus, FLAC, MP3 and format-declared PCM.
// Auto sniffs every interval and delegates, so a sender may switch codecs
// between intervals.
//
// All decoders emit interleaved stereo int32 samples in 24-bit range. Mono
// sources are duplicated to both channels; channels past the second are
// dropped.
//
// Example:
//
//	session := decode.NewSession(decode.NewAuto())
//	if err := session.Load(id, intervalBytes); err != nil {
//	    // interval falls back to silence
//	}
//	frames := session.Decode(buf)
package decode
