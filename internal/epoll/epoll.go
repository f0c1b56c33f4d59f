// Package epoll abstracts the reactor's readiness poll behind a single
// interface, with a Linux epoll backend; other platforms get an explicit
// "not supported" stub rather than a degraded fallback.
package epoll

// Events is a bitmask of readiness conditions a caller wants to watch a
// descriptor for.
type Events uint32

const (
	// In is readiness for reading.
	In Events = 1 << 0
	// Out is readiness for writing.
	Out Events = 1 << 1
)

// Desc pairs a file descriptor with the events last requested for it.
type Desc struct {
	FD     int
	Events Events
}

// Ready reports a descriptor's observed readiness after a Wait call.
type Ready struct {
	FD     int
	Events Events
}

// Poller multiplexes readiness waits across a set of descriptors. The
// reactor calls Add and Remove from other goroutines while its own goroutine
// is blocked in Wait; the Linux backend keeps no state beyond the epoll
// descriptor, and the kernel accepts epoll_ctl during an epoll_wait.
type Poller interface {
	// Add starts watching fd for the given events.
	Add(fd int, events Events) error
	// Remove stops watching fd.
	Remove(fd int) error
	// Wait blocks until at least one watched descriptor is ready, the
	// timeout elapses, or an interrupting event (e.g. the self-pipe) fires.
	// timeoutMillis < 0 means wait indefinitely.
	Wait(timeoutMillis int) ([]Ready, error)
	// Close releases any OS resources the poller holds.
	Close() error
}
