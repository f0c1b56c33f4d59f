package reactor

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/coropool/coropool/internal/epoll"
	"github.com/coropool/coropool/internal/fiber"
)

// harness gives each test its own lock/cond/push collector, standing in for
// the scheduler kernel the reactor normally shares state with.
type harness struct {
	mu     sync.Mutex
	cond   *sync.Cond
	pushed []*fiber.Fiber
}

func newHarness() *harness {
	h := &harness{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// push stands in for the scheduler kernel's admit-then-some-worker-resumes
// sequence: it records the fiber for the test's own assertions, then
// resumes it on its own goroutine exactly as a worker popping it off the
// runnable pool would. Like Strategy.PushCtx, it is called by the reactor
// with h.mu already held, so it must not lock h.mu itself.
func (h *harness) push(f *fiber.Fiber) {
	h.pushed = append(h.pushed, f)
	h.cond.Broadcast()
	go f.Resume()
}

func TestRegisterWakesOnRealFDReadiness(t *testing.T) {
	h := newHarness()
	r, err := New(&h.mu, h.cond, h.push)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	rf, wf, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer rf.Close()
	defer wf.Close()

	registered := make(chan struct{})
	woke := make(chan struct{})
	f := fiber.New(0, func() {
		close(registered)
		if err := r.Register(int(rf.Fd()), epoll.In); err != nil {
			t.Errorf("Register: %v", err)
		}
		close(woke)
	})
	f.Start()
	go f.Resume()

	<-registered
	time.Sleep(20 * time.Millisecond) // give Register time to park before the write
	if _, err := wf.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("fiber was never re-resumed after fd became ready")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pushed) != 1 || h.pushed[0] != f {
		t.Fatalf("expected exactly the registering fiber to be pushed back, got %v", h.pushed)
	}
}

func TestCloseStopsWithinBoundedTime(t *testing.T) {
	h := newHarness()
	r, err := New(&h.mu, h.cond, h.push)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		if err := r.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return within bounded time")
	}
}
