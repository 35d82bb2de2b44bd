// ABOUTME: Jam session model package
// ABOUTME: Provides the Registry of known servers with their tempo and membership
// Package session tracks what the client knows about jam servers.
//
// A Registry maps "host:port" endpoints to Servers with get-or-create
// semantics. Servers are never removed, so reconnecting to an endpoint
// reuses its tempo and membership history.
//
// Tempo changes return a Result instead of an error: out-of-range values
// are Rejected and leave the server untouched.
//
// Example:
//
//	registry := session.NewRegistry()
//	server := registry.GetOrCreate("jam.example.com", 2049)
//	if server.SetBpm(300) == session.Rejected {
//	    log.Printf("Ignoring bpm 300")
//	}
//	delta := server.RefreshMembership(users)
package session
