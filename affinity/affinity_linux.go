//go:build linux
// +build linux

// File: affinity/affinity_linux.go
//
// Linux-specific implementation for setting thread CPU affinity, via
// sched_setaffinity(2) through golang.org/x/sys/unix rather than cgo, so the
// module stays a pure-Go build.

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// setAffinityPlatform pins the calling OS thread to cpuID. The caller must
// have called runtime.LockOSThread first — affinity is a property of an OS
// thread, and goroutines migrate between OS threads unless locked.
func setAffinityPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity failed: %w", err)
	}
	return nil
}
