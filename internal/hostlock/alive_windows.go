//go:build windows

package hostlock

import "golang.org/x/sys/windows"

// processAlive reports whether a PID refers to a running process. OpenProcess
// with the narrowest right fails for exited PIDs, which is all we need.
func processAlive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == 259 // STILL_ACTIVE
}
