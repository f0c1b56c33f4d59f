// Package fiber implements the stackful user-thread context that the
// scheduler kernel resumes and suspends.
//
// Go has no public API for switching stacks on an existing goroutine, so a
// Fiber hosts its functor on a dedicated goroutine for the Fiber's entire
// lifetime and hands control back and forth with a pair of unbuffered
// channels. From the scheduler's point of view this is indistinguishable
// from a stackful coroutine: Resume blocks the caller until the fiber either
// suspends or returns, and Suspend blocks the fiber until the caller resumes
// it again.
package fiber

import "sync/atomic"

// resumeSignal carries nothing; it only releases the fiber goroutine.
type resumeSignal struct{}

// suspendSignal carries nothing; Finished/Panic are read from the Fiber
// itself once the send below happens-after those fields are written.
type suspendSignal struct{}

// Fiber is a cooperatively-scheduled execution context with its own
// goroutine-backed stack.
type Fiber struct {
	resumeCh  chan resumeSignal
	suspendCh chan suspendSignal
	finished  atomic.Bool
	started   atomic.Bool
	parked    atomic.Bool
	panicVal  any
	stackHint int
}

// New constructs a Fiber that will run fn when started. stackHint is
// advisory only (Go goroutines grow their own stacks); it is accepted so
// callers that want to size their fiber's stack have a place to say so.
func New(stackHint int, fn func()) *Fiber {
	f := &Fiber{
		resumeCh:  make(chan resumeSignal),
		suspendCh: make(chan suspendSignal),
		stackHint: stackHint,
	}
	go f.run(fn)
	return f
}

// run is the body of the fiber's dedicated goroutine. It blocks immediately
// (the priming step: the goroutine exists but the functor has not run yet),
// waiting for the first Start/Resume.
func (f *Fiber) run(fn func()) {
	bind(f)
	defer unbind()

	// Wait for Start() to admit the goroutine into existence as "the"
	// fiber's stack.
	<-f.resumeCh

	// Priming wrapper: suspend immediately, before touching fn, so that
	// Start() can return to its caller with the functor installed but not
	// yet running. The next Resume() is what actually runs fn.
	f.suspendCh <- suspendSignal{}
	<-f.resumeCh

	var pv any
	func() {
		defer func() {
			if r := recover(); r != nil {
				pv = r
			}
		}()
		fn()
	}()

	f.finished.Store(true)
	f.panicVal = pv
	f.suspendCh <- suspendSignal{}
}

// Start runs the fiber up to its first cooperative suspend, installing the
// functor. It must be called exactly once, before any Resume.
func (f *Fiber) Start() {
	if f.started.Swap(true) {
		panic("fiber: Start called more than once")
	}
	f.resumeCh <- resumeSignal{}
	<-f.suspendCh
}

// Resume transfers control from the caller (a worker) into the fiber and
// blocks until the fiber suspends again or returns. It must not be called
// concurrently with another Resume of the same Fiber, and must not be
// called on a finished Fiber.
func (f *Fiber) Resume() {
	if f.finished.Load() {
		panic("fiber: Resume called on a finished fiber")
	}
	f.resumeCh <- resumeSignal{}
	<-f.suspendCh
}

// Suspend transfers control from the fiber back to whichever goroutine is
// blocked in Resume (or Start), and blocks until Resume is called again.
// Suspend must be called from inside the fiber's own goroutine.
func (f *Fiber) Suspend() {
	f.suspendCh <- suspendSignal{}
	<-f.resumeCh
}

// Finished reports whether the functor has returned (or panicked).
func (f *Fiber) Finished() bool {
	return f.finished.Load()
}

// SetParked records that this fiber has been moved out of the scheduler's
// runnable pool and into some other owner's bookkeeping (currently, the
// reactor's parked list) before Suspend. A parked fiber is neither
// runnable nor finished: whoever moved it out of the pool is responsible
// for clearing the flag and re-admitting it once it becomes runnable
// again, so the scheduler kernel's own release-after-Resume path must not
// push it back itself and double-enqueue it.
func (f *Fiber) SetParked(parked bool) {
	f.parked.Store(parked)
}

// Parked reports whether SetParked(true) was called more recently than
// SetParked(false).
func (f *Fiber) Parked() bool {
	return f.parked.Load()
}

// Panic returns the value recovered from a panicking functor, or nil.
func (f *Fiber) Panic() any {
	return f.panicVal
}
