package reactor

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coropool/coropool/api"
	"github.com/coropool/coropool/control"
	"github.com/coropool/coropool/internal/epoll"
	"github.com/coropool/coropool/internal/fiber"
	"github.com/coropool/coropool/internal/selfpipe"
)

// Reactor is the scheduler's dedicated I/O goroutine. It owns two
// index-aligned slices, descs and parked, a fiber's registered descriptor
// and its parked handle at the same index: Go slices already give O(1)
// random access, so there is no need for a separate iterator structure to
// support erasing from the middle. Index 0 of both slices is reserved for
// the self-pipe's read end; parked[0] is a sentinel and is never
// dereferenced.
type Reactor struct {
	mu   *sync.Mutex
	cond *sync.Cond
	push func(*fiber.Fiber)

	poller epoll.Poller
	pipe   *selfpipe.Pipe

	descs  []epoll.Desc
	parked []*fiber.Fiber

	closing atomic.Bool
	done    chan struct{}
	errRate *control.ErrorRateLimiter
}

var _ api.Reactor = (*Reactor)(nil)

// New builds a Reactor sharing the scheduler's own lock and condition
// variable, opens a poller and a self-pipe, and starts the poll loop on its
// own goroutine. push is bound to the scheduler's Strategy.PushCtx.
func New(mu *sync.Mutex, cond *sync.Cond, push func(*fiber.Fiber)) (*Reactor, error) {
	poller, err := epoll.NewPoller()
	if err != nil {
		return nil, fmt.Errorf("reactor: %w", err)
	}
	pipe, err := selfpipe.New()
	if err != nil {
		poller.Close()
		return nil, fmt.Errorf("reactor: %w", err)
	}
	if err := poller.Add(pipe.ReadFD(), epoll.In); err != nil {
		poller.Close()
		pipe.Close()
		return nil, fmt.Errorf("reactor: %w", err)
	}

	r := &Reactor{
		mu:      mu,
		cond:    cond,
		push:    push,
		poller:  poller,
		pipe:    pipe,
		descs:   []epoll.Desc{{FD: pipe.ReadFD(), Events: epoll.In}},
		parked:  []*fiber.Fiber{nil}, // sentinel
		done:    make(chan struct{}),
		errRate: control.NewErrorRateLimiter(time.Second),
	}
	go r.loop()
	return r, nil
}

// Register parks the calling fiber (found via fiber.Self — there is no
// *fiber.Fiber parameter because this is meant to be called from inside a
// user thread's own I/O wrapper, which has no handle of its own to pass in)
// until fd becomes ready for events, then suspends it. The caller resumes
// inside the fiber once a worker has re-resumed it after the reactor
// re-enqueues it.
//
// ctx is marked parked before it suspends, so the scheduler kernel's own
// release-after-Resume path knows this fiber has been moved into the
// reactor's own bookkeeping and must not also re-admit it onto the
// runnable pool — drainReady clears the flag when it re-enqueues the
// fiber once fd is actually ready.
func (r *Reactor) Register(fd int, events epoll.Events) error {
	ctx := fiber.Self()
	if ctx == nil {
		return fmt.Errorf("reactor: Register called outside a fiber")
	}

	ctx.SetParked(true)

	r.mu.Lock()
	r.descs = append(r.descs, epoll.Desc{FD: fd, Events: events})
	r.parked = append(r.parked, ctx)
	r.mu.Unlock()

	if err := r.poller.Add(fd, events); err != nil {
		ctx.SetParked(false)
		r.mu.Lock()
		r.removeAt(len(r.descs) - 1)
		r.mu.Unlock()
		return fmt.Errorf("reactor: %w", err)
	}

	ctx.Suspend()
	return nil
}

// Close signals the poll loop to stop, by both waking the self-pipe and
// setting an observed flag: the pipe wakes a blocked Wait, the flag is what
// the loop actually checks, so the loop can tell "time to shut down" apart
// from "nothing is ready yet" on the same wakeup.
func (r *Reactor) Close() error {
	r.closing.Store(true)
	r.pipe.Wake()
	<-r.done
	perr := r.poller.Close()
	if err := r.pipe.Close(); err != nil {
		return err
	}
	return perr
}

func (r *Reactor) loop() {
	defer close(r.done)
	for {
		if r.closing.Load() {
			return
		}

		ready, err := r.poller.Wait(-1)
		if err != nil {
			r.logPollError(err)
			continue
		}
		if r.closing.Load() {
			return
		}

		selfPipeReady := false
		readyFDs := make(map[int]struct{}, len(ready))
		for _, rd := range ready {
			if rd.FD == r.pipe.ReadFD() {
				selfPipeReady = true
				continue
			}
			readyFDs[rd.FD] = struct{}{}
		}
		if selfPipeReady {
			r.pipe.Drain()
		}
		if len(readyFDs) == 0 {
			continue
		}

		r.drainReady(readyFDs)
	}
}

// drainReady stably partitions descs[1:]/parked[1:] so the fds in readyFDs
// sort to the front while preserving relative order within each group, then
// pops that ready prefix, pushing each parked fiber back onto the runnable
// pool and erasing it from both slices.
func (r *Reactor) drainReady(readyFDs map[int]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.descs)
	readyDescs := make([]epoll.Desc, 0, n)
	readyCtxs := make([]*fiber.Fiber, 0, n)
	restDescs := make([]epoll.Desc, 0, n)
	restCtxs := make([]*fiber.Fiber, 0, n)

	for i := 1; i < n; i++ {
		if _, ok := readyFDs[r.descs[i].FD]; ok {
			readyDescs = append(readyDescs, r.descs[i])
			readyCtxs = append(readyCtxs, r.parked[i])
		} else {
			restDescs = append(restDescs, r.descs[i])
			restCtxs = append(restCtxs, r.parked[i])
		}
	}

	r.descs = append(r.descs[:1], restDescs...)
	r.parked = append(r.parked[:1], restCtxs...)

	for i, d := range readyDescs {
		if err := r.poller.Remove(d.FD); err != nil {
			r.logPollError(err)
		}
		readyCtxs[i].SetParked(false)
		r.push(readyCtxs[i])
		r.cond.Signal()
	}
}

// removeAt deletes index i from descs/parked under the caller's lock,
// preserving order of everything else. Used only to unwind a failed
// Register.
func (r *Reactor) removeAt(i int) {
	r.descs = append(r.descs[:i], r.descs[i+1:]...)
	r.parked = append(r.parked[:i], r.parked[i+1:]...)
}

func (r *Reactor) logPollError(err error) {
	if r.errRate.Allow() {
		log.Print(fmt.Errorf("%w: %v", api.ErrPollFailed, err))
	}
}
