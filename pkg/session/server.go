// ABOUTME: Jam server tempo contract and membership state
// ABOUTME: Bounded BPM/BPI changes, membership refresh and diagnostic dump
package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	MinBpm = 40
	MaxBpm = 250
	MinBpi = 3
	MaxBpi = 64

	DefaultBpm = 120
	DefaultBpi = 16
)

// Result is the outcome of a tempo change request
type Result int

const (
	// Unchanged means the requested value was already current
	Unchanged Result = iota
	// Rejected means the value was out of range and was not applied
	Rejected
	// Changed means the value was committed
	Changed
)

func (r Result) String() string {
	switch r {
	case Unchanged:
		return "unchanged"
	case Rejected:
		return "rejected"
	case Changed:
		return "changed"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Delta lists the users a membership refresh added and removed
type Delta struct {
	Joined []User
	Left   []User
}

// Empty reports whether the refresh changed nothing
func (d Delta) Empty() bool {
	return len(d.Joined) == 0 && len(d.Left) == 0
}

// Server is one jam session endpoint
type Server struct {
	host string
	port int

	mu          sync.RWMutex
	bpm         int
	bpi         int
	active      bool
	streamURL   string
	topic       string
	maxUsers    int
	containsBot bool
	users       map[string]User
}

func newServer(host string, port int) *Server {
	return &Server{
		host:   host,
		port:   port,
		bpm:    DefaultBpm,
		bpi:    DefaultBpi,
		active: true,
		users:  make(map[string]User),
	}
}

// Host returns the server host name
func (s *Server) Host() string { return s.host }

// Port returns the server port
func (s *Server) Port() int { return s.port }

// Key returns the registry key of the server
func (s *Server) Key() string { return Key(s.host, s.port) }

// SetBpm applies a new tempo if it is within [MinBpm, MaxBpm]
func (s *Server) SetBpm(bpm int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return set(&s.bpm, bpm, MinBpm, MaxBpm)
}

// SetBpi applies a new interval length if it is within [MinBpi, MaxBpi]
func (s *Server) SetBpi(bpi int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return set(&s.bpi, bpi, MinBpi, MaxBpi)
}

func set(field *int, v, lo, hi int) Result {
	if v == *field {
		return Unchanged
	}
	if v < lo || v > hi {
		return Rejected
	}
	*field = v
	return Changed
}

// Bpm returns beats per minute
func (s *Server) Bpm() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bpm
}

// Bpi returns beats per interval
func (s *Server) Bpi() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bpi
}

// Tempo returns bpm and bpi read together
func (s *Server) Tempo() (bpm, bpi int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bpm, s.bpi
}

// IntervalFrames returns the length of one interval at sampleRate
func (s *Server) IntervalFrames(sampleRate int) int {
	bpm, bpi := s.Tempo()
	return IntervalFrames(sampleRate, bpm, bpi)
}

// IntervalDuration returns the wall-clock length of one interval
func (s *Server) IntervalDuration() time.Duration {
	bpm, bpi := s.Tempo()
	return time.Duration(bpi) * time.Minute / time.Duration(bpm)
}

// IntervalFrames converts a tempo contract into frames per interval
func IntervalFrames(sampleRate, bpm, bpi int) int {
	if bpm <= 0 {
		return 0
	}
	return sampleRate * 60 * bpi / bpm
}

// RefreshMembership makes the membership exactly online. New users are
// added first, then users missing from online are removed. Users already
// present are left as they are. Adding a bot marks the server as having
// contained one; that mark is never cleared.
func (s *Server) RefreshMembership(online []User) Delta {
	s.mu.Lock()
	defer s.mu.Unlock()

	var delta Delta
	seen := make(map[string]bool, len(online))

	for _, u := range online {
		name := u.FullName()
		seen[name] = true
		if added, ok := s.addUser(u); ok {
			delta.Joined = append(delta.Joined, added)
		}
	}

	for name, u := range s.users {
		if !seen[name] {
			delete(s.users, name)
			delta.Left = append(delta.Left, u)
		}
	}

	sortUsers(delta.Joined)
	sortUsers(delta.Left)
	return delta
}

// addUser inserts u, owned by s, if absent and reports whether it did
func (s *Server) addUser(u User) (User, bool) {
	name := u.FullName()
	if _, ok := s.users[name]; ok {
		return User{}, false
	}
	u.server = s
	s.users[name] = u
	if u.Bot {
		s.containsBot = true
	}
	return u, true
}

// ContainsUser reports whether fullName is a member
func (s *Server) ContainsUser(fullName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[fullName]
	return ok
}

// User looks up a member by full name
func (s *Server) User(fullName string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[fullName]
	return u, ok
}

// Users returns the members sorted by full name
func (s *Server) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sortUsers(users)
	return users
}

// UserCount returns the membership size
func (s *Server) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// ContainsBot reports whether a bot was ever a member
func (s *Server) ContainsBot() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.containsBot
}

// ContainsBotOnly reports a single member on a server that has seen a bot.
// The remaining member is not checked to be the bot.
func (s *Server) ContainsBotOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users) == 1 && s.containsBot
}

// Active reports whether this is the currently joined session
func (s *Server) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActive flags the server as joined or remembered
func (s *Server) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// Topic returns the session topic
func (s *Server) Topic() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topic
}

// SetTopic sets the session topic
func (s *Server) SetTopic(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = topic
}

// StreamURL returns the public listening stream of the session
func (s *Server) StreamURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamURL
}

// SetStreamURL sets the public listening stream
func (s *Server) SetStreamURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamURL = url
}

// MaxUsers returns the server's user limit, 0 when unknown
func (s *Server) MaxUsers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxUsers
}

// SetMaxUsers sets the user limit
func (s *Server) SetMaxUsers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxUsers = n
}

// String renders the server for logs
func (s *Server) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "JamServer{port=%d, host=%s, stream=%s, maxUsers=%d, bpm=%d, bpi=%d, isActive=%t}\n",
		s.port, s.host, s.streamURL, s.maxUsers, s.bpm, s.bpi, s.active)

	names := make([]string, 0, len(s.users))
	for _, u := range s.users {
		names = append(names, u.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "\t%s\n", name)
	}
	return b.String()
}

func sortUsers(users []User) {
	sort.Slice(users, func(i, j int) bool {
		return users[i].FullName() < users[j].FullName()
	})
}
