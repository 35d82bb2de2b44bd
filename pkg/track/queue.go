// ABOUTME: FIFO queue of pending intervals
// ABOUTME: Growable circular buffer that never reorders its entries
package track

import (
	"time"

	"github.com/google/uuid"
)

// Interval is one compressed interval for one track
type Interval struct {
	ID       uuid.UUID
	Data     []byte
	Received time.Time
}

// Queue is a FIFO of intervals. It grows on demand and is not safe for
// concurrent use.
type Queue struct {
	buf   []Interval
	head  int
	count int
}

// NewQueue creates a queue with room for capacity intervals before growing
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{buf: make([]Interval, capacity)}
}

// Push appends an interval at the tail
func (q *Queue) Push(iv Interval) {
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.count)%len(q.buf)] = iv
	q.count++
}

// Pop removes the oldest interval
func (q *Queue) Pop() (Interval, bool) {
	if q.count == 0 {
		return Interval{}, false
	}
	iv := q.buf[q.head]
	q.buf[q.head] = Interval{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return iv, true
}

// Len returns the number of queued intervals
func (q *Queue) Len() int {
	return q.count
}

// Clear drops every queued interval
func (q *Queue) Clear() {
	clear(q.buf)
	q.head = 0
	q.count = 0
}

func (q *Queue) grow() {
	next := make([]Interval, len(q.buf)*2)
	for i := 0; i < q.count; i++ {
		next[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = next
	q.head = 0
}
