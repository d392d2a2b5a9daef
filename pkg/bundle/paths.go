package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Paths is the on-disk catalog for one product installation: where the
// persistent data root, the plugin registrations, the state file and the
// run lock live. Everything hangs off <stateRoot>/<productCode> so two
// products never collide.
type Paths struct {
	root string
}

// NewPaths builds the catalog under an explicit state root. Tests point
// this at a temporary directory.
func NewPaths(stateRoot, productCode string) Paths {
	return Paths{root: filepath.Join(stateRoot, productCode)}
}

// DefaultPaths builds the catalog under the platform's machine-wide data
// directory, honoring the DESKBUNDLE_STATE_ROOT override.
func DefaultPaths(productCode string) (Paths, error) {
	root, err := defaultStateRoot()
	if err != nil {
		return Paths{}, err
	}
	return NewPaths(root, productCode), nil
}

func defaultStateRoot() (string, error) {
	if override := os.Getenv("DESKBUNDLE_STATE_ROOT"); override != "" {
		return override, nil
	}
	switch runtime.GOOS {
	case "windows":
		pd := os.Getenv("ProgramData")
		if pd == "" {
			return "", fmt.Errorf("ProgramData environment variable is not set")
		}
		return pd, nil
	case "darwin":
		return "/Library/Application Support", nil
	default:
		return "/var/lib", nil
	}
}

// Root returns the product's persistent directory.
func (p Paths) Root() string { return p.root }

// DataRoot returns the default data root; modules get subdirectories here.
func (p Paths) DataRoot() string { return filepath.Join(p.root, "data") }

// PluginDir returns the default plugin registration directory.
func (p Paths) PluginDir() string { return filepath.Join(p.root, "plugins") }

// StateFile returns the install-state document path.
func (p Paths) StateFile() string { return filepath.Join(p.root, "install-state.json") }

// LockFile returns the exclusive run-lock path. It sits next to the state
// file because the state file is the resource the lock protects.
func (p Paths) LockFile() string { return filepath.Join(p.root, "run.lock") }

// EnsureLayout creates the product directory tree.
func (p Paths) EnsureLayout() error {
	for _, dir := range []string{p.root, p.DataRoot(), p.PluginDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ResolvePath resolves a manifest path field: absolute paths pass through,
// relative paths join the base directory. An empty path is rejected so a
// blank manifest field can never silently target the base directory itself.
func ResolvePath(base, raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(raw) {
		return raw, nil
	}
	return filepath.Join(base, raw), nil
}
