// Package hostlock provides the exclusive run lock held for the duration of
// an install or uninstall. The install state file is an unlocked shared
// resource on the host filesystem; two concurrent runs against the same
// product would race its reads and writes, so the engine takes this lock
// before touching anything.
package hostlock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// ErrHeld is returned when another live process holds the lock.
var ErrHeld = fmt.Errorf("another install/uninstall run is in progress")

// Lock is an acquired run lock.
type Lock struct {
	path   string
	logger hclog.Logger
}

// Acquire takes the lock at path, breaking stale locks left by dead
// processes. Returns ErrHeld when a live process owns it.
func Acquire(path string, logger hclog.Logger) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	if data, err := os.ReadFile(path); err == nil {
		pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr == nil && processAlive(pid) {
			logger.Debug("lock held by live process", "pid", pid)
			return nil, ErrHeld
		}
		logger.Info("removing stale run lock", "path", path)
		_ = os.Remove(path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("create run lock %s: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write run lock: %w", err)
	}

	logger.Debug("acquired run lock", "path", path, "pid", os.Getpid())
	return &Lock{path: path, logger: logger}, nil
}

// Release removes the lock file. Safe to call once per acquired lock.
func (l *Lock) Release() {
	if err := os.Remove(l.path); err != nil {
		l.logger.Warn("failed to remove run lock", "path", l.path, "error", err)
		return
	}
	l.logger.Debug("released run lock", "path", l.path)
}
