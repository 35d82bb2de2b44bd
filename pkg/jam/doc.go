// ABOUTME: Package documentation for the jam client
// ABOUTME: Joins a session and plays every remote track through the mixer
// Package jam provides a high-level client for listening to a jam session.
//
// The client joins a server, follows its tempo and membership, creates one
// track per remote channel and plays the mix through an audio output.
// Per-channel mixer settings are remembered in an optional cache.
//
// Example:
//
//	client, err := jam.NewClient(jam.Config{
//		ServerAddr: "jam.example.com:2049",
//		Name:       "alice",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Connect(context.Background()); err != nil {
//		log.Fatal(err)
//	}
package jam
