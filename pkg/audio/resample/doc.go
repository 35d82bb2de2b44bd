// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts track audio to the output device rate
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation. Input frames still needed for interpolation stay
// with the resampler between blocks, together with the fractional position, so
// a stream rendered in blocks matches the stream resampled in one call.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	in := stream.Render(r.InputFramesNeeded(256))
//	written := r.Resample(in.Samples, out)
package resample
