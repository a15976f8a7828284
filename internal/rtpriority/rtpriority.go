// Package rtpriority makes a best-effort, one-shot attempt to promote the
// calling OS thread to a higher scheduling priority for low-latency
// audio/video work. No cross-platform realtime-priority package exists
// anywhere in the reference corpus, so the Linux backend calls
// golang.org/x/sys/unix directly; it is a no-op on platforms without a
// supported backend, mirroring the original's own fallback arm.
package rtpriority

import (
	"sync/atomic"

	"github.com/hyperzoom/hyperzoom-go/internal/debug"
)

// PromoteOnce promotes the current OS thread's priority exactly once per
// done flag. Callers must have already called runtime.LockOSThread() so
// the promotion sticks to the goroutine's dedicated thread. Subsequent
// calls sharing the same done flag are no-ops.
func PromoteOnce(done *atomic.Bool, label string) {
	if !done.CompareAndSwap(false, true) {
		return
	}
	if promoteCurrentThread() {
		debug.Logf("rtpriority: promoted %s thread", label)
	} else {
		debug.Logf("rtpriority: promotion unavailable, leaving %s thread at default priority", label)
	}
}
