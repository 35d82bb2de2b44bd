// ABOUTME: Track stream implementation
// ABOUTME: Owns one participant's interval queue and decoder session
package track

import (
	"fmt"
	"log"
	"sync"

	"github.com/jamsync/jamsync-go/pkg/audio"
	"github.com/jamsync/jamsync-go/pkg/audio/decode"
)

// Key identifies a track: one channel of one participant
type Key struct {
	User    string
	Channel uint8
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.User, k.Channel)
}

// Stream presents a participant's arriving intervals as a continuous PCM
// source. mu guards the queue and the playing and active flags, and is held
// only to check or flip them. decodeMu guards the decoder session and render
// buffer; Enqueue never takes it, so network delivery does not wait on a
// decode. The two are never held together.
type Stream struct {
	key Key

	mu        sync.Mutex
	queue     *Queue
	playing   bool
	active    bool
	underruns int

	decodeMu sync.Mutex
	session  *decode.Session
	buf      []int32
}

// NewStream creates an active stream with a render buffer sized for
// maxFrames frames
func NewStream(key Key, dec decode.Decoder, maxFrames int) *Stream {
	if maxFrames < 1 {
		maxFrames = 1
	}
	return &Stream{
		key:     key,
		queue:   NewQueue(4),
		session: decode.NewSession(dec),
		active:  true,
		buf:     make([]int32, maxFrames*audio.Channels),
	}
}

// Key returns the stream identity
func (s *Stream) Key() Key {
	return s.key
}

// Enqueue appends an interval. Ignored once the stream is deactivated.
func (s *Stream) Enqueue(iv Interval) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	s.queue.Push(iv)
}

// BeginNextInterval starts the oldest pending interval, or marks the stream
// as not playing when nothing is queued. Called at every interval boundary.
func (s *Stream) BeginNextInterval() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	iv, ok := s.queue.Pop()
	if !ok && s.playing {
		s.underruns++
	}
	s.playing = ok
	s.mu.Unlock()

	s.decodeMu.Lock()
	defer s.decodeMu.Unlock()

	if !ok {
		s.session.Unload()
		return
	}
	if err := s.session.Load(iv.ID, iv.Data); err != nil {
		// Session is now exhausted, so the interval renders as silence
		log.Printf("Track %s: %v", s.key, err)
	}
}

// Render pulls up to frames frames of decoded audio. When the stream is not
// playing, or nothing decodes, the block is frames frames of silence. A short
// decode is returned as is. The block aliases an internal buffer that is
// reused by the next Render.
func (s *Stream) Render(frames int) audio.Block {
	frames = max(frames, 0)

	s.mu.Lock()
	playing := s.active && s.playing
	s.mu.Unlock()

	s.decodeMu.Lock()
	defer s.decodeMu.Unlock()

	if need := frames * audio.Channels; need > len(s.buf) {
		s.buf = make([]int32, need)
	}

	if !playing {
		return audio.Silence(s.buf, frames, 0)
	}

	total := 0
	for total < frames {
		n := s.session.Decode(s.buf[total*audio.Channels : frames*audio.Channels])
		if n == 0 {
			break
		}
		total += n
	}

	if total == 0 {
		return audio.Silence(s.buf, frames, s.session.SampleRate())
	}

	return audio.Block{
		Samples:    s.buf[:total*audio.Channels],
		Frames:     total,
		SampleRate: s.session.SampleRate(),
	}
}

// NeedsResample reports whether the playing interval's rate differs from
// target. Silence never needs resampling.
func (s *Stream) NeedsResample(target int) bool {
	if !s.Playing() {
		return false
	}
	rate := s.SampleRate()
	return rate > 0 && rate != target
}

// Playing reports whether an interval is current
func (s *Stream) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SampleRate returns the rate of the current interval, 0 when none decoded
func (s *Stream) SampleRate() int {
	s.decodeMu.Lock()
	defer s.decodeMu.Unlock()
	return s.session.SampleRate()
}

// Pending returns the number of queued intervals
func (s *Stream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Underruns counts boundaries where a playing stream found its queue empty
func (s *Stream) Underruns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.underruns
}

// Active reports whether the stream still accepts intervals
func (s *Stream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Deactivate tears the stream down. Later Enqueue and Render calls are no-ops.
func (s *Stream) Deactivate() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.playing = false
	s.queue.Clear()
	s.mu.Unlock()

	s.decodeMu.Lock()
	defer s.decodeMu.Unlock()
	if err := s.session.Close(); err != nil {
		log.Printf("Track %s: failed to close decoder: %v", s.key, err)
	}
}
