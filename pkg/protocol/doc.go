// ABOUTME: Jam session wire protocol package
// ABOUTME: Defines control messages, interval frames and the WebSocket client
// Package protocol implements the jam session wire protocol.
//
// Control messages are JSON envelopes {"type": ..., "payload": ...} sent as
// WebSocket text frames. Intervals travel as binary frames:
//
//	[type=8][channel u8][name length u16 BE][name][guid 16 bytes][payload]
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{ServerAddr: "localhost:2049", Name: "alice"})
//	err := client.Connect(ctx)
//	for m := range client.Intervals { ... }
package protocol
