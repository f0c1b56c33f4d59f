// Package facade aggregates the scheduler kernel, strategy, reactor,
// affinity, and control layers behind a single Runtime, for embedders who
// don't want to assemble the pieces by hand.
package facade

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coropool/coropool"
	"github.com/coropool/coropool/api"
	"github.com/coropool/coropool/control"
	"github.com/coropool/coropool/strategy"
)

// Config holds parameters immutable per Runtime, mirroring the ambient
// config/metrics/debug conventions the rest of the module follows.
type Config struct {
	Workers        int    // number of scheduler worker goroutines
	StrategyOrder  string // "fifo" (default) or "lifo"
	EnableReactor  bool   // start the async I/O reactor
	EnableAffinity bool   // pin worker goroutines to CPUs
	EnableMetrics  bool   // expose the scheduler's metrics as a debug probe
	EnableDebug    bool   // register debug probes
}

// DefaultConfig returns sane defaults: a FIFO strategy, the reactor enabled,
// affinity disabled (not worth the per-worker LockOSThread cost unless the
// embedder asks for it), and one worker per logical CPU is left to the
// caller, not defaulted here, since coropool.New itself defaults n<=0 to 1.
func DefaultConfig() *Config {
	return &Config{
		Workers:        4,
		StrategyOrder:  "fifo",
		EnableReactor:  true,
		EnableAffinity: false,
		EnableMetrics:  true,
		EnableDebug:    true,
	}
}

// Runtime is the facade's main type: it owns a Scheduler plus the ambient
// ConfigStore/MetricsRegistry/DebugProbes wired around it.
type Runtime struct {
	scheduler *coropool.Scheduler
	config    *control.ConfigStore
	metrics   *control.MetricsRegistry
	debug     *control.DebugProbes

	mu      sync.RWMutex
	started bool
	cfg     *Config
}

// New constructs a Runtime from cfg (DefaultConfig() if nil), building the
// Strategy, MetricsRegistry, and Scheduler the configuration calls for.
func New(cfg *Config) (*Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var st api.Strategy
	switch cfg.StrategyOrder {
	case "", "fifo":
		st = strategy.NewFIFO()
	case "lifo":
		st = strategy.NewLIFO()
	default:
		return nil, fmt.Errorf("facade: unknown strategy order %q", cfg.StrategyOrder)
	}

	r := &Runtime{
		config: control.NewConfigStore(),
		cfg:    cfg,
	}
	// The scheduler always collects metrics internally (fibers added and
	// completed, reactor unavailable); EnableMetrics only gates whether a
	// debug probe surfaces them.
	r.metrics = control.NewMetricsRegistry()
	if cfg.EnableDebug {
		r.debug = control.NewDebugProbes()
		r.debug.RegisterProbe("scheduler.joinable", func() any { return r.scheduler.Joinable() })
		if cfg.EnableMetrics {
			r.debug.RegisterProbe("scheduler.metrics", func() any { return r.metrics.GetSnapshot() })
		}
		control.RegisterPlatformProbes(r.debug)
	}

	opts := []coropool.Option{
		coropool.WithStrategy(st),
		coropool.WithReactor(cfg.EnableReactor),
		coropool.WithAffinity(cfg.EnableAffinity),
		coropool.WithMetrics(r.metrics),
	}
	r.scheduler = coropool.New(cfg.Workers, opts...)

	if r.debug != nil {
		var reloads atomic.Int64
		r.config.OnReload(func() { reloads.Add(1) })
		r.debug.RegisterProbe("config.reloads", func() any { return reloads.Load() })
	}
	r.config.SetConfig(map[string]any{
		"workers":        cfg.Workers,
		"strategy_order": cfg.StrategyOrder,
		"reactor":        cfg.EnableReactor,
		"affinity":       cfg.EnableAffinity,
	})

	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return r, nil
}

// Scheduler returns the Runtime's Scheduler, for callers that want to call
// AddThread/JoinAll/Register directly.
func (r *Runtime) Scheduler() *coropool.Scheduler {
	return r.scheduler
}

// Config returns the Runtime's hot-reloadable configuration store.
func (r *Runtime) Config() *control.ConfigStore {
	return r.config
}

// Options returns the Config the Runtime was constructed with.
func (r *Runtime) Options() *Config {
	return r.cfg
}

// Metrics returns the Runtime's metrics registry.
func (r *Runtime) Metrics() *control.MetricsRegistry {
	return r.metrics
}

// Debug returns the Runtime's debug probe registry, or nil if
// Config.EnableDebug was false.
func (r *Runtime) Debug() *control.DebugProbes {
	return r.debug
}

var _ api.GracefulShutdown = (*Runtime)(nil)

// Shutdown drains every fiber currently in the runnable pool, then closes
// the scheduler (and its reactor, if any). Calling Shutdown twice, or on a
// Runtime with nothing outstanding, is safe.
func (r *Runtime) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil
	}
	r.scheduler.JoinAll()
	if err := r.scheduler.Close(); err != nil {
		return err
	}
	r.started = false
	return nil
}
