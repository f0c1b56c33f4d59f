package strategy

import (
	"testing"

	"github.com/coropool/coropool/api"
	"github.com/coropool/coropool/internal/fiber"
)

func newFiber() *fiber.Fiber {
	return fiber.New(0, func() {})
}

func TestFIFOOrder(t *testing.T) {
	s := NewFIFO()
	a, b, c := newFiber(), newFiber(), newFiber()
	s.PushCtx(a)
	s.PushCtx(b)
	s.PushCtx(c)
	if s.PoolSize() != 3 {
		t.Fatalf("PoolSize = %d, want 3", s.PoolSize())
	}
	if got := s.PopCtx(); got != a {
		t.Fatal("expected a first out of a FIFO pool")
	}
	if got := s.PopCtx(); got != b {
		t.Fatal("expected b second out of a FIFO pool")
	}
	if got := s.PopCtx(); got != c {
		t.Fatal("expected c third out of a FIFO pool")
	}
}

func TestLIFOOrder(t *testing.T) {
	s := NewLIFO()
	a, b, c := newFiber(), newFiber(), newFiber()
	s.PushCtx(a)
	s.PushCtx(b)
	s.PushCtx(c)
	if got := s.PopCtx(); got != c {
		t.Fatal("expected c first out of a LIFO pool")
	}
	if got := s.PopCtx(); got != b {
		t.Fatal("expected b second out of a LIFO pool")
	}
	if got := s.PopCtx(); got != a {
		t.Fatal("expected a third out of a LIFO pool")
	}
}

func TestPopEmptyPanics(t *testing.T) {
	for _, s := range []api.Strategy{NewFIFO(), NewLIFO()} {
		func() {
			defer func() {
				if r := recover(); r != api.ErrStrategyEmptyMessage {
					t.Fatalf("PopCtx on empty pool panicked with %v, want %v", r, api.ErrStrategyEmptyMessage)
				}
			}()
			s.PopCtx()
		}()
	}
}
