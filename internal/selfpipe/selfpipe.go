// Package selfpipe implements the self-pipe trick: a pipe whose read end is
// registered alongside the descriptors a reactor polls, and whose write end
// lets any goroutine break that poll out of a blocking wait on demand.
package selfpipe

import (
	"os"
	"sync"
)

// Pipe is a one-shot-per-wakeup interrupt signal built on an os.Pipe. It is
// safe to call Wake from many goroutines concurrently with the reactor
// draining the read end.
type Pipe struct {
	r, w *os.File

	mu      sync.Mutex
	pending bool
}

// New opens the underlying pipe. The read end's fd is what callers register
// with a poller.
func New() (*Pipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &Pipe{r: r, w: w}, nil
}

// ReadFD returns the file descriptor a poller should watch for readability.
func (p *Pipe) ReadFD() int {
	return int(p.r.Fd())
}

// Wake writes a single byte to the pipe if one isn't already pending, so that
// a blocked poll wakes up. Multiple concurrent Wake calls coalesce into a
// single byte; Drain then clears all of it in one read.
func (p *Pipe) Wake() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending {
		return
	}
	p.pending = true
	_, _ = p.w.Write([]byte{0})
}

// Drain empties the pipe after a wakeup has been observed. It must be called
// once per observed wakeup (however many Wake calls coalesced into it), since
// Wake writes nothing more until Drain has cleared the pending flag.
func (p *Pipe) Drain() {
	p.mu.Lock()
	p.pending = false
	p.mu.Unlock()

	var buf [64]byte
	for {
		n, err := p.r.Read(buf[:])
		if n < len(buf) || err != nil {
			return
		}
	}
}

// Close releases both ends of the pipe.
func (p *Pipe) Close() error {
	werr := p.w.Close()
	rerr := p.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
