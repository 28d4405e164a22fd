package audio

import (
	"sync"
	"sync/atomic"
)

// pcmLoop reads frames into buffer and accumulates them until stopped. The
// first read error ends the loop and is kept for stop to report.
type pcmLoop struct {
	read   func() error
	buffer []int16

	mu      sync.Mutex
	samples []int16
	err     error

	stopped atomic.Bool
	done    chan struct{}
}

func newPCMLoop(buffer []int16, read func() error) *pcmLoop {
	return &pcmLoop{
		read:   read,
		buffer: buffer,
		done:   make(chan struct{}),
	}
}

func (l *pcmLoop) start() {
	go l.run()
}

func (l *pcmLoop) run() {
	defer close(l.done)

	for !l.stopped.Load() {
		if err := l.read(); err != nil {
			l.mu.Lock()
			l.err = err
			l.mu.Unlock()
			return
		}
		l.mu.Lock()
		l.samples = append(l.samples, l.buffer...)
		l.mu.Unlock()
	}
}

// stop ends the loop and returns what was captured along with any read
// error.
func (l *pcmLoop) stop() ([]int16, error) {
	l.stopped.Store(true)
	<-l.done

	l.mu.Lock()
	defer l.mu.Unlock()
	samples := l.samples
	l.samples = nil
	return samples, l.err
}
