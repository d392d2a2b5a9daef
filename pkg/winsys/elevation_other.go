//go:build !windows

package winsys

import "os"

// IsElevated reports whether the current process runs as root.
func IsElevated() bool {
	return os.Geteuid() == 0
}
