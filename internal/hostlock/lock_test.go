package hostlock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "product", "run.lock")
}

func TestAcquireRelease(t *testing.T) {
	path := lockPath(t)
	logger := hclog.NewNullLogger()

	lock, err := Acquire(path, logger)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}

	lock.Release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("lock file should be gone, stat err = %v", err)
	}

	// Reacquirable after release.
	lock, err = Acquire(path, logger)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	lock.Release()
}

func TestAcquireHeldByLiveProcess(t *testing.T) {
	path := lockPath(t)
	logger := hclog.NewNullLogger()

	lock, err := Acquire(path, logger)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	// The holder is this very process, which is definitely alive.
	if _, err := Acquire(path, logger); !errors.Is(err, ErrHeld) {
		t.Fatalf("second acquire err = %v, want ErrHeld", err)
	}
}

func TestAcquireBreaksStaleLock(t *testing.T) {
	path := lockPath(t)
	logger := hclog.NewNullLogger()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// A PID far above any real pid table, left by a "dead" process.
	if err := os.WriteFile(path, []byte("1073741824\n"), 0o644); err != nil {
		t.Fatalf("write stale lock: %v", err)
	}

	lock, err := Acquire(path, logger)
	if err != nil {
		t.Fatalf("Acquire over stale lock: %v", err)
	}
	lock.Release()
}

func TestAcquireBreaksGarbageLock(t *testing.T) {
	path := lockPath(t)
	logger := hclog.NewNullLogger()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatalf("write garbage lock: %v", err)
	}

	lock, err := Acquire(path, logger)
	if err != nil {
		t.Fatalf("Acquire over garbage lock: %v", err)
	}
	lock.Release()
}
