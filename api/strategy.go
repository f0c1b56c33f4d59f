// Package api
//
// Strategy contract for the scheduler kernel's runnable-fiber pool.

package api

import "github.com/coropool/coropool/internal/fiber"

// Strategy is the opaque runnable-pool ordering policy the scheduler kernel
// pops fibers from and pushes fibers back into. Implementations never take
// the scheduler's own lock: every call arrives with that lock already held
// by the caller, so a Strategy only needs to protect its own data structure
// against nothing but sequential access.
type Strategy interface {
	// PushCtx admits a fiber into the pool.
	PushCtx(ctx *fiber.Fiber)

	// PopCtx removes and returns a fiber chosen by the strategy's order.
	// Its precondition is PoolSize() != 0; calling it on an empty pool is a
	// scheduler-kernel programming error and implementations panic with
	// ErrStrategyEmptyMessage rather than returning an error.
	PopCtx() *fiber.Fiber

	// PoolSize reports how many fibers are currently pooled.
	PoolSize() int
}
