// Package coropool multiplexes many lightweight, stackful user threads
// ("fibers") onto a small fixed pool of goroutine-backed workers, with a
// dedicated reactor goroutine that parks fibers blocked on file descriptors
// and resumes them once the descriptor becomes ready.
package coropool

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/coropool/coropool/api"
	"github.com/coropool/coropool/control"
	"github.com/coropool/coropool/internal/epoll"
	"github.com/coropool/coropool/internal/fiber"
	"github.com/coropool/coropool/reactor"
	"github.com/coropool/coropool/strategy"
)

// DefaultStackBytes is the stack-allocation hint passed to fiber.New when a
// caller uses AddThread instead of AddThreadSize. Go goroutines grow their
// own stacks, so this is advisory bookkeeping only, kept so AddThreadSize
// has a documented size to default away from.
const DefaultStackBytes = 64 * 1024

// exitCodeSchedulerGCWhileJoinable is the process exit status used by the
// finalizer backstop: a caller dropped a Scheduler handle without calling
// Close while threads were still joinable.
const exitCodeSchedulerGCWhileJoinable = 17

// finalizerExit is os.Exit behind a variable so tests can observe the
// backstop firing without actually terminating the test binary.
var finalizerExit = os.Exit

// Scheduler is the M:N kernel: a fixed pool of worker goroutines draining a
// Strategy-ordered runnable pool of fibers, one mutex and one condition
// variable guarding all of it.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	strategy api.Strategy
	workers  []*worker
	wg       sync.WaitGroup

	terminated bool
	joining    bool

	reactorEnabled  bool
	affinityEnabled bool
	reactor         api.Reactor

	metrics   *control.MetricsRegistry
	lastPanic atomic.Value

	closed atomic.Bool
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithStrategy installs a non-default runnable-pool ordering policy.
func WithStrategy(s api.Strategy) Option {
	return func(sch *Scheduler) { sch.strategy = s }
}

// WithReactor enables or disables the async I/O reactor goroutine. Enabled
// by default.
func WithReactor(enabled bool) Option {
	return func(sch *Scheduler) { sch.reactorEnabled = enabled }
}

// WithAffinity enables pinning each worker goroutine's OS thread to CPU
// id % runtime.NumCPU(), so workers share CPUs when there are more workers
// than CPUs. Disabled by default, since it requires runtime.LockOSThread
// per worker and is only worth the cost under real contention.
func WithAffinity(enabled bool) Option {
	return func(sch *Scheduler) { sch.affinityEnabled = enabled }
}

// WithMetrics installs a caller-owned MetricsRegistry instead of the one a
// Scheduler otherwise creates for itself, so embedders can share one
// registry across a facade.
func WithMetrics(m *control.MetricsRegistry) Option {
	return func(sch *Scheduler) { sch.metrics = m }
}

// New builds a Scheduler with n worker goroutines and starts them
// immediately. The reactor, if enabled, is started alongside them.
func New(n int, opts ...Option) *Scheduler {
	if n <= 0 {
		n = 1
	}
	s := &Scheduler{
		strategy:       strategy.NewFIFO(),
		metrics:        control.NewMetricsRegistry(),
		reactorEnabled: true,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}

	if s.reactorEnabled {
		r, err := reactor.New(&s.mu, s.cond, s.strategy.PushCtx)
		if err != nil {
			// The reactor is an optional accelerator for I/O-bound fibers;
			// a platform that can't build one still gets a working
			// scheduler for compute-bound fibers.
			s.metrics.Inc("reactor_unavailable", 1)
		} else {
			s.reactor = r
		}
	}

	s.workers = make([]*worker, n)
	s.wg.Add(n)
	for i := 0; i < n; i++ {
		w := &worker{id: i, s: s}
		s.workers[i] = w
		go w.run()
	}

	runtime.SetFinalizer(s, schedulerFinalizer)
	return s
}

func schedulerFinalizer(s *Scheduler) {
	if s.Joinable() {
		finalizerExit(exitCodeSchedulerGCWhileJoinable)
	}
}

// AddThread admits fn as a new fiber with the default stack-size hint and
// enqueues it onto the runnable pool.
func (s *Scheduler) AddThread(fn func()) {
	s.AddThreadSize(DefaultStackBytes, fn)
}

// AddThreadSize admits fn as a new fiber, advising a stack size of size
// bytes (advisory only; see DefaultStackBytes), and enqueues it onto the
// runnable pool.
//
// The fiber is Start()ed here — run up to its priming suspend, installing
// the functor without running it — before it is pushed into the Strategy,
// so that any worker which immediately pops it can Resume it straight into
// real work.
func (s *Scheduler) AddThreadSize(size int, fn func()) {
	ctx := fiber.New(size, fn)
	ctx.Start()

	s.mu.Lock()
	s.strategy.PushCtx(ctx)
	s.metrics.Inc("fibers_added", 1)
	s.mu.Unlock()
	s.cond.Signal()
}

// JoinAll blocks until every fiber currently in the runnable pool has run
// to completion (fibers that Yield keep getting re-admitted and counted
// until they finish). It does not affect fibers parked in the reactor that
// have not yet become runnable again.
func (s *Scheduler) JoinAll() {
	s.mu.Lock()
	s.joining = true
	for s.strategy.PoolSize() != 0 {
		s.cond.Wait()
		s.cond.Signal()
	}
	s.joining = false
	s.mu.Unlock()
}

// Joinable reports whether any fiber remains in the runnable pool.
func (s *Scheduler) Joinable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy.PoolSize() != 0
}

// Close stops all worker goroutines and the reactor. Destroying a Scheduler
// while fibers remain joinable is a programming error; Close returns
// api.ErrSchedulerJoinable so the failure is an ordinary, testable control
// path rather than an abort. Callers who drop a Scheduler handle entirely
// without calling Close still get an abort, via the finalizer registered in
// New — a backstop, not the primary contract.
func (s *Scheduler) Close() error {
	if s.Joinable() {
		return api.ErrSchedulerJoinable
	}
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	s.terminated = true
	s.cond.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()

	runtime.SetFinalizer(s, nil)

	if s.reactor != nil {
		return s.reactor.Close()
	}
	return nil
}

// LastFibPanic returns the most recently recovered panic value from a fiber
// functor, or nil if none has panicked. This is a debugging aid only: the
// kernel never re-panics a recovered fiber panic across fibers or to the
// caller of JoinAll/Close.
func (s *Scheduler) LastFibPanic() any {
	return s.lastPanic.Load()
}

// Metrics returns the Scheduler's MetricsRegistry.
func (s *Scheduler) Metrics() *control.MetricsRegistry {
	return s.metrics
}

// Reactor returns the Scheduler's reactor, or nil if WithReactor(false) was
// used or the platform reactor failed to build.
func (s *Scheduler) Reactor() api.Reactor {
	return s.reactor
}

// Register parks the calling fiber until fd is ready for events, via the
// Scheduler's reactor. It is a convenience wrapper; callers with a *Reactor
// in hand may call Register on it directly.
func (s *Scheduler) Register(fd int, events epoll.Events) error {
	if s.reactor == nil {
		return api.NewError(api.ErrCodeInvalidArgument, "coropool: Register called but no reactor is running")
	}
	return s.reactor.Register(fd, events)
}

// Yield cooperatively suspends the calling fiber, returning control to
// whichever worker resumed it. The worker re-admits the fiber onto the
// runnable pool as soon as Resume returns, so Yield is a request to let
// other runnable fibers run, not a park with no return.
func Yield() {
	ctx := fiber.Self()
	if ctx == nil {
		panic("coropool: Yield called outside a fiber")
	}
	ctx.Suspend()
}

// worker is one of the Scheduler's fixed goroutine-backed OS-thread
// equivalents.
type worker struct {
	id int
	s  *Scheduler
}

// contextGuard gives Resume a scoped pop/push-if-not-finished guarantee:
// the fiber is removed from the runnable
// pool on construction and, via release, admitted back (if it did not
// finish) or retired (if it did) — covering the case where Resume itself
// panics, not just a functor panic already recovered inside internal/fiber.
type contextGuard struct {
	s   *Scheduler
	ctx *fiber.Fiber
}

// popGuarded blocks until a fiber is runnable or the Scheduler terminates,
// then removes it from the runnable pool and returns a guard for it. ok is
// false only when the Scheduler is terminating and the worker should exit.
func (s *Scheduler) popGuarded() (*contextGuard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.terminated && s.strategy.PoolSize() == 0 {
		s.cond.Wait()
	}
	if s.terminated {
		return nil, false
	}
	ctx := s.strategy.PopCtx()
	return &contextGuard{s: s, ctx: ctx}, true
}

// release re-admits ctx onto the runnable pool if it has not finished, or
// records its completion (and any recovered panic) if it has, then wakes
// the appropriate set of waiters. If ctx parked itself (e.g. via
// Reactor.Register) before suspending, it has already been moved into the
// reactor's own bookkeeping, so release must not re-admit it here — doing
// so would double-enqueue the fiber, letting a worker resume it while the
// reactor still believes it owns it.
func (g *contextGuard) release() {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case g.ctx.Parked():
		// The reactor owns re-enqueueing this fiber once its descriptor is
		// ready; nothing to do here but wake other waiters.
	case !g.ctx.Finished():
		s.strategy.PushCtx(g.ctx)
	default:
		if p := g.ctx.Panic(); p != nil {
			s.lastPanic.Store(p)
		}
		s.metrics.Inc("fibers_completed", 1)
	}

	if s.joining {
		s.cond.Broadcast()
	} else {
		s.cond.Signal()
	}
}

// run is the worker loop: identical discipline for every worker, regardless
// of which fiber it happens to be resuming.
func (w *worker) run() {
	defer w.s.wg.Done()
	if w.s.affinityEnabled {
		pinWorker(w.id)
	}
	for {
		guard, ok := w.s.popGuarded()
		if !ok {
			return
		}
		w.resumeGuarded(guard)
	}
}

// resumeGuarded runs one fiber to its next suspend or completion with the
// Scheduler's lock released (Resume may block for an arbitrarily long time
// cooperating with other fibers; holding the lock across it would stall
// every other worker and AddThread caller), then guarantees the guard's
// pop/push bookkeeping runs even if Resume itself panics.
func (w *worker) resumeGuarded(g *contextGuard) {
	defer g.release()
	g.ctx.Resume()
}
