// ABOUTME: Headless audio output
// ABOUTME: Pulls the Source on a real-time ticker and discards the samples
package output

import (
	"sync"
	"time"
)

// Null drives a Source at the device rate without any audio hardware
type Null struct {
	master

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	period time.Duration
}

// NewNull creates a headless output pulling 10ms blocks
func NewNull() *Null {
	n := &Null{period: 10 * time.Millisecond}
	n.init()
	return n
}

// Open starts pulling from src
func (n *Null) Open(sampleRate, channels, bitDepth int, src Source) error {
	n.Close()

	n.mu.Lock()
	defer n.mu.Unlock()

	frames := int(time.Duration(sampleRate) * n.period / time.Second)
	if frames < 1 {
		frames = 1
	}
	buf := make([]int32, frames*channels)

	n.stop = make(chan struct{})
	n.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(n.period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				src.Render(buf)
				n.apply(buf)
			}
		}
	}(n.stop, n.done)

	return nil
}

// Close stops the pull loop
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stop != nil {
		close(n.stop)
		<-n.done
		n.stop = nil
	}
	return nil
}
