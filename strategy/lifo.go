package strategy

import (
	"github.com/gammazero/deque"

	"github.com/coropool/coropool/api"
	"github.com/coropool/coropool/internal/fiber"
)

// lifo orders fibers last-in-first-out, backed by gammazero/deque's
// double-ended ring buffer. Useful for embedders who want depth-first
// draining of a burst of related fibers for cache locality.
type lifo struct {
	d deque.Deque
}

// NewLIFO builds a last-in-first-out runnable-pool strategy.
func NewLIFO() api.Strategy {
	return &lifo{}
}

func (s *lifo) PushCtx(ctx *fiber.Fiber) {
	s.d.PushBack(ctx)
}

func (s *lifo) PopCtx() *fiber.Fiber {
	if s.d.Len() == 0 {
		panic(api.ErrStrategyEmptyMessage)
	}
	return s.d.PopBack().(*fiber.Fiber)
}

func (s *lifo) PoolSize() int {
	return s.d.Len()
}
