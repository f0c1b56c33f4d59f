// Package strategy provides the runnable-fiber pool orderings the scheduler
// kernel pops from and pushes into.
package strategy

import (
	"github.com/eapache/queue"

	"github.com/coropool/coropool/api"
	"github.com/coropool/coropool/internal/fiber"
)

// fifo orders fibers first-in-first-out, backed by eapache/queue's
// ring-buffer implementation. It is the scheduler's default.
type fifo struct {
	q *queue.Queue
}

// NewFIFO builds the default runnable-pool strategy: fibers are resumed in
// the order they became runnable.
func NewFIFO() api.Strategy {
	return &fifo{q: queue.New()}
}

func (s *fifo) PushCtx(ctx *fiber.Fiber) {
	s.q.Add(ctx)
}

func (s *fifo) PopCtx() *fiber.Fiber {
	if s.q.Length() == 0 {
		panic(api.ErrStrategyEmptyMessage)
	}
	return s.q.Remove().(*fiber.Fiber)
}

func (s *fifo) PoolSize() int {
	return s.q.Length()
}
