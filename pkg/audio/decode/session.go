// ABOUTME: Decoder session state machine
// ABOUTME: Tracks Idle, Loaded and Exhausted states around one codec instance
package decode

import (
	"fmt"
	"log"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Session
type State int

const (
	// StateIdle means no interval has been loaded since the last Unload
	StateIdle State = iota
	// StateLoaded means an interval is loaded and still producing frames
	StateLoaded
	// StateExhausted means the loaded interval ran out or failed
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session wraps a decoder and makes interval exhaustion explicit.
// It is not safe for concurrent use; the owning track serializes access.
type Session struct {
	decoder    Decoder
	state      State
	intervalID uuid.UUID
	sampleRate int
}

// NewSession creates an idle session around d
func NewSession(d Decoder) *Session {
	return &Session{decoder: d}
}

// Load resets the decoder and primes it with one interval.
// On failure the session is Exhausted so the interval renders as silence.
func (s *Session) Load(id uuid.UUID, data []byte) error {
	s.intervalID = id

	if err := s.decoder.Reset(data); err != nil {
		s.state = StateExhausted
		s.sampleRate = 0
		return fmt.Errorf("failed to load interval %s: %w", id, err)
	}

	s.state = StateLoaded
	s.sampleRate = s.decoder.SampleRate()
	return nil
}

// Decode pulls up to len(dst)/2 frames. Zero means the interval is exhausted.
func (s *Session) Decode(dst []int32) int {
	if s.state != StateLoaded {
		return 0
	}

	n, err := s.decoder.Decode(dst)
	if err != nil {
		log.Printf("Decode failed for interval %s: %v", s.intervalID, err)
		s.state = StateExhausted
		return n
	}
	if n == 0 && len(dst) > 0 {
		s.state = StateExhausted
	}
	return n
}

// Unload returns the session to Idle
func (s *Session) Unload() {
	s.state = StateIdle
	s.intervalID = uuid.Nil
	s.sampleRate = 0
}

// SampleRate is the rate declared by the loaded interval, 0 when none decoded
func (s *Session) SampleRate() int {
	return s.sampleRate
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// IntervalID returns the ID of the loaded interval, uuid.Nil when idle
func (s *Session) IntervalID() uuid.UUID {
	return s.intervalID
}

// Close releases the underlying decoder
func (s *Session) Close() error {
	s.Unload()
	return s.decoder.Close()
}
