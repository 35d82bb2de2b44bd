// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the pull-model Output interface with malgo, oto and headless backends
// Package output provides audio playback.
//
// Backends pull audio from a Source whenever the device needs more, so
// the device clock drives rendering. Backends: Malgo (16/24/32-bit via
// miniaudio), Oto (16-bit) and Null (headless, ticker driven).
//
// Example:
//
//	out := output.NewMalgo()
//	err := out.Open(48000, 2, 24, mixer)
//	out.SetVolume(80)
package output
