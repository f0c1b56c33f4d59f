package coropool

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coropool/coropool/api"
	"github.com/coropool/coropool/internal/epoll"
)

func TestSingleWorkerSingleThread(t *testing.T) {
	s := New(1, WithReactor(false))
	var ran atomic.Bool
	s.AddThread(func() { ran.Store(true) })
	s.JoinAll()
	if !ran.Load() {
		t.Fatal("fiber never ran")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFourWorkersThousandFibers(t *testing.T) {
	s := New(4, WithReactor(false))
	var counter atomic.Int64
	const n = 1000
	for i := 0; i < n; i++ {
		s.AddThread(func() { counter.Add(1) })
	}
	s.JoinAll()
	if got := counter.Load(); got != n {
		t.Fatalf("counter = %d, want %d", got, n)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCooperativeYieldInterleaving(t *testing.T) {
	s := New(1, WithReactor(false))
	var mu sync.Mutex
	var order []string

	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	s.AddThread(func() {
		record("a1")
		Yield()
		record("a2")
	})
	s.AddThread(func() {
		record("b1")
		Yield()
		record("b2")
	})
	s.JoinAll()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a1", "b1", "a2", "b2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCloseWhileJoinableReturnsSentinel(t *testing.T) {
	s := New(1, WithReactor(false))
	block := make(chan struct{})
	s.AddThread(func() { <-block })

	err := s.Close()
	if !errors.Is(err, api.ErrSchedulerJoinable) {
		t.Fatalf("Close while joinable returned %v, want ErrSchedulerJoinable", err)
	}

	close(block)
	s.JoinAll()
	if err := s.Close(); err != nil {
		t.Fatalf("Close after drain: %v", err)
	}
}

func TestFinalizerBackstopFiresWhenJoinableSchedulerIsDropped(t *testing.T) {
	orig := finalizerExit
	var exited atomic.Bool
	var gotCode atomic.Int64
	finalizerExit = func(code int) {
		exited.Store(true)
		gotCode.Store(int64(code))
	}
	defer func() { finalizerExit = orig }()

	block := make(chan struct{})
	defer close(block)

	func() {
		s := New(1, WithReactor(false))
		s.AddThread(func() { <-block })
		schedulerFinalizer(s)
	}()

	if !exited.Load() {
		t.Fatal("finalizer backstop did not fire for a joinable scheduler")
	}
	if gotCode.Load() != int64(exitCodeSchedulerGCWhileJoinable) {
		t.Fatalf("exit code = %d, want %d", gotCode.Load(), exitCodeSchedulerGCWhileJoinable)
	}
}

func TestPanickingFiberIsRecoveredAndRecorded(t *testing.T) {
	s := New(1, WithReactor(false))
	s.AddThread(func() { panic("boom") })
	s.JoinAll()
	if s.LastFibPanic() != "boom" {
		t.Fatalf("LastFibPanic = %v, want boom", s.LastFibPanic())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReactorWakesRegisteredFiberThroughScheduler(t *testing.T) {
	s := New(2) // reactor enabled by default

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	done := make(chan struct{})
	s.AddThread(func() {
		if err := s.Register(int(r.Fd()), epoll.In); err != nil {
			t.Errorf("Register: %v", err)
			return
		}
		close(done)
	})

	time.Sleep(20 * time.Millisecond) // give the fiber time to park before the write
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fiber registered on a real fd was never resumed after it became ready")
	}

	s.JoinAll()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestJoinAllReturnsWithinBoundedTime(t *testing.T) {
	s := New(4, WithReactor(false))
	for i := 0; i < 50; i++ {
		s.AddThread(func() { time.Sleep(time.Millisecond) })
	}

	done := make(chan struct{})
	go func() {
		s.JoinAll()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("JoinAll did not return within bounded time")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
