// ABOUTME: Session participant identity
// ABOUTME: User names, addresses, channels and bot detection
package session

import "strings"

// Channel is one audio channel published by a user
type Channel struct {
	Index uint8
	Name  string
}

// User is a session participant
type User struct {
	Name     string
	Address  string
	Bot      bool
	Channels []Channel

	server *Server
}

// Server returns the server u is a member of, or nil for a user that was
// never added to one
func (u User) Server() *Server {
	return u.server
}

// FullName is the identity of the user within a server
func (u User) FullName() string {
	if u.Address == "" {
		return u.Name
	}
	return u.Name + "@" + u.Address
}

// botNames are server-side bots that never send music
var botNames = []string{"ninbot", "jambot", "jamtaba"}

// IsBotName reports whether name belongs to a well-known session bot
func IsBotName(name string) bool {
	name = strings.ToLower(name)
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	for _, bot := range botNames {
		if name == bot || strings.HasPrefix(name, bot+"_") {
			return true
		}
	}
	return false
}
