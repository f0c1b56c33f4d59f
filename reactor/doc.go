// Package reactor implements the scheduler's dedicated async I/O goroutine:
// it parks fibers blocked on file descriptors via internal/epoll and
// re-enqueues them onto the runnable pool once the descriptor is ready.
package reactor
