//go:build !linux

// Stub for platforms without epoll. The reactor's readiness poll is Linux-only
// for now; other platforms get a clear error instead of a silently degraded
// poller.
package epoll

import "errors"

// NewPoller returns an error on platforms without an epoll backend.
func NewPoller() (Poller, error) {
	return nil, errors.New("epoll: this platform is not supported")
}
