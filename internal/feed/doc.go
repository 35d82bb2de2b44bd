// ABOUTME: Package documentation for the development feed server
// ABOUTME: Serves a synthetic jam session over the jam protocol
// Package feed runs a jam session server with virtual participants.
//
// Every interval each participant renders a test tone, or a looped audio file
// when Config.AudioFile is set. The audio is encoded as a self-contained Ogg
// Opus stream and broadcast to every connected client. Real clients appear in
// the user list without channels.
//
// Example:
//
//	srv, err := feed.NewServer(feed.Config{Port: 2049, Bpm: 100, Bpi: 8, Users: 3})
//	if err != nil {
//		log.Fatal(err)
//	}
//	go srv.Stop() // from a signal handler
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
package feed
