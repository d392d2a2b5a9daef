//go:build !windows

package hostlock

import (
	"os"
	"syscall"
)

// processAlive reports whether a PID refers to a running process.
// Signal 0 performs the existence check without delivering anything.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
