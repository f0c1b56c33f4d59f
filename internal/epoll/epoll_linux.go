//go:build linux

package epoll

import (
	"golang.org/x/sys/unix"
)

// linuxPoller backs Poller with the kernel's epoll facility.
type linuxPoller struct {
	fd int
}

// NewPoller opens a Linux epoll instance.
func NewPoller() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &linuxPoller{fd: fd}, nil
}

func toEpollEvents(e Events) uint32 {
	var out uint32
	if e&In != 0 {
		out |= unix.EPOLLIN
	}
	if e&Out != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

func fromEpollEvents(e uint32) Events {
	var out Events
	if e&unix.EPOLLIN != 0 {
		out |= In
	}
	if e&unix.EPOLLOUT != 0 {
		out |= Out
	}
	return out
}

func (p *linuxPoller) Add(fd int, events Events) error {
	ev := unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *linuxPoller) Remove(fd int) error {
	// Linux ignores the event argument on EPOLL_CTL_DEL, but older kernels
	// require a non-nil pointer.
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, &unix.EpollEvent{})
}

func (p *linuxPoller) Wait(timeoutMillis int) ([]Ready, error) {
	events := make([]unix.EpollEvent, 32)
	for {
		n, err := unix.EpollWait(p.fd, events, timeoutMillis)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		ready := make([]Ready, 0, n)
		for i := 0; i < n; i++ {
			ready = append(ready, Ready{
				FD:     int(events[i].Fd),
				Events: fromEpollEvents(events[i].Events),
			})
		}
		return ready, nil
	}
}

func (p *linuxPoller) Close() error {
	return unix.Close(p.fd)
}
