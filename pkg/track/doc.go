// ABOUTME: Track stream package for remote participant audio
// ABOUTME: Turns queued compressed intervals into a gap-free pull-based PCM source
// Package track implements the per-participant streaming engine.
//
// The network side calls Enqueue as intervals arrive. The render side calls
// BeginNextInterval at every interval boundary and Render once per audio
// cycle. An empty queue at a boundary is an underrun: the track renders
// silence until the next interval shows up.
//
// Example:
//
//	stream := track.NewStream(track.Key{User: "alice@10.0.0.x", Channel: 0}, decode.NewAuto(), 512)
//	stream.Enqueue(track.Interval{ID: id, Data: payload})
//	stream.BeginNextInterval()
//	block := stream.Render(256)
package track
