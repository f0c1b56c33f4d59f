// Package control provides the scheduler's ambient layer: hot-reloadable
// configuration, runtime metrics, error-rate limiting, and debug
// introspection, shared by the scheduler kernel, reactor, and facade.
//
// Provides concurrent-safe state handling primitives including:
//   - Immutable snapshot config reads and atomic updates
//   - Runtime observers for hot-reload
//   - Metrics telemetry contracts
//   - State export, debug hooks, and probe registration
//   - Bounded-rate error logging for persistently failing poll loops
package control
