// Package winsys provides the real Detector and SystemMutator
// implementations: registry reads, .lnk shortcuts, services, firewall rules
// and autorun entries. Windows-only pieces sit behind build tags; file
// checks and elevation work everywhere so detect and doctor (and the test
// suite) run on any OS.
package winsys

import (
	"fmt"
	"os"

	"github.com/deskbundle/deskbundle/pkg/bundle"
)

// Detector evaluates detection rules against the live system.
type Detector struct{}

// Detect implements engine.Detector. None never matches; file_exists
// resolves relative paths against baseDir; registry_value reads the named
// value as its declared type and compares per the expectation. A cleanly
// absent file, key or value means "not installed"; access failures are hard
// errors, never a silent false.
func (Detector) Detect(baseDir string, rule bundle.DetectRule) (bool, error) {
	switch {
	case rule.IsNone():
		return false, nil
	case rule.Kind == bundle.DetectFileExists:
		path, err := bundle.ResolvePath(baseDir, rule.File.Path)
		if err != nil {
			return false, fmt.Errorf("resolve file_exists path: %w", err)
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, fmt.Errorf("stat %s: %w", path, err)
		}
		return true, nil
	case rule.Kind == bundle.DetectRegistryValue:
		return detectRegistryValue(rule.Registry)
	}
	return false, fmt.Errorf("unknown detect rule %q", rule.Kind)
}
