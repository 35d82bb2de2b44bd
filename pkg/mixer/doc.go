// ABOUTME: Mixer package for the jam render graph
// ABOUTME: Sums track streams with gain, pan and mute on the output device clock
// Package mixer pulls every track stream once per device cycle, resamples
// tracks whose interval rate differs from the output rate, applies channel
// strip settings and sums the result.
//
// The IntervalClock counts rendered frames and starts the next interval on
// every stream at each boundary, so interval timing follows the audio
// device rather than the network.
//
// Strips are published to the render thread as an immutable snapshot. The
// control lock is never held while a track renders.
package mixer
