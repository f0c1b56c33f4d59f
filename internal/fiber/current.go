package fiber

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// current implements the "current-context TLS" component from the source
// design: a slot that lets code running inside a fiber's goroutine discover
// its own *Fiber without being handed one explicitly (the reactor's
// Register path needs exactly this).
//
// Go exposes no goroutine-local storage, so the slot is keyed by goroutine
// id, extracted the same way the handful of pre-context.Context
// goroutine-local-storage shims in the ecosystem (e.g. jtolds/gls) do: parse
// the header line of runtime.Stack. A Fiber's goroutine is that Fiber's
// dedicated stack for its entire lifetime, so the binding happens once at
// goroutine start and is removed once at goroutine exit, rather than being
// rebound on every Resume the way a true OS-thread TLS slot would need to be.
var current sync.Map // goroutine id (int64) -> *Fiber

func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	// "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	b = bytes.TrimPrefix(b, []byte(prefix))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseInt(string(b), 10, 64)
	return id
}

func bind(f *Fiber) {
	current.Store(goroutineID(), f)
}

func unbind() {
	current.Delete(goroutineID())
}

// Self returns the Fiber currently executing on the calling goroutine, or
// nil if the caller is not running inside a fiber.
func Self() *Fiber {
	v, ok := current.Load(goroutineID())
	if !ok {
		return nil
	}
	return v.(*Fiber)
}
