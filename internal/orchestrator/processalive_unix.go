//go:build !windows

package orchestrator

import "syscall"

// processAlive reports whether pid is a live process, by sending the null
// signal (no-op delivery, just existence/permission check).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
