// File: api/reactor.go
//
// Defines the abstract interface for the async I/O reactor: the dedicated
// goroutine that parks fibers blocked on file descriptors and resumes them
// once the descriptor becomes ready.

package api

import "github.com/coropool/coropool/internal/epoll"

// Reactor is the contract the scheduler kernel holds a reactor by. The
// concrete implementation lives in package reactor; this interface exists so
// the scheduler kernel and facade can depend on the shape without importing
// the epoll/selfpipe machinery directly.
type Reactor interface {
	// Register parks the calling fiber (discovered via fiber.Self()) until
	// fd becomes ready for the requested events, then re-enqueues it onto
	// the scheduler's runnable pool.
	Register(fd int, events epoll.Events) error

	// Close signals the reactor's poll loop to stop, via the self-pipe and
	// an observed atomic flag, and waits for the goroutine to exit.
	Close() error
}
