package coropool

import (
	"log"
	"runtime"

	"github.com/coropool/coropool/affinity"
)

// pinWorker locks the calling worker goroutine to its current OS thread and
// pins that thread to CPU id % NumCPU. Affinity failures are logged, not
// fatal: an unpinned worker still runs correctly, just without the cache
// locality WithAffinity was asked for.
func pinWorker(id int) {
	runtime.LockOSThread()
	if err := affinity.PinWorker(id, runtime.NumCPU()); err != nil {
		log.Printf("coropool: worker %d affinity pin failed: %v", id, err)
	}
}
