//go:build linux

package rtpriority

import "golang.org/x/sys/unix"

// promoteCurrentThread requests SCHED_RR scheduling at a modest fixed
// priority for the calling thread. Best-effort: most unprivileged
// processes can't raise their own scheduling class, so a failure here is
// expected and silently ignored rather than treated as an error.
func promoteCurrentThread() bool {
	err := unix.SchedSetscheduler(0, unix.SCHED_RR, &unix.SchedParam{Priority: 10})
	return err == nil
}
