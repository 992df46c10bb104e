//go:build windows

package orchestrator

import "os"

// processAlive reports whether pid is a live process. os.FindProcess never
// fails to find a pid on Windows, so a non-nil process here means only that
// pid is structurally valid; actual exit detection relies on pty.Manager's
// own liveness tracking once the terminal has been re-spawned.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	return err == nil && proc != nil
}
