package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deskbundle/deskbundle/internal/hostlock"
	"github.com/deskbundle/deskbundle/pkg/bundle"
)

// Uninstall tears the product down, ordered to minimize lingering side
// effects even under partial failure. Cleanup of previously recorded
// mutations is best-effort throughout; the one step allowed to abort the
// run is a module uninstaller that itself errors, so a genuine uninstaller
// malfunction is surfaced instead of silently leaving its registry entries
// and services behind.
func (e *Engine) Uninstall() error {
	lock, err := hostlock.Acquire(e.paths.LockFile(), e.log)
	if err != nil {
		return err
	}
	released := false
	defer func() {
		if !released {
			lock.Release()
		}
	}()

	if err := e.uninstallLocked(); err != nil {
		return err
	}

	released = true
	lock.Release()
	// The product state directory held the lock file, so it goes last.
	e.bestEffort("remove product state directory", func() error {
		return os.RemoveAll(e.paths.Root())
	})
	e.log.Info("uninstall complete", "product", e.manifest.ProductName)
	return nil
}

func (e *Engine) uninstallLocked() error {
	e.log.Info("starting uninstall",
		"product", e.manifest.ProductName, "version", e.manifest.Version)

	state, err := bundle.LoadState(e.paths.StateFile())
	if err != nil {
		return err
	}

	if state != nil {
		e.rollbackRecorded(state)
	} else if e.manifest.Autorun.Enabled {
		// No state file (crashed or partial install); the autorun entry may
		// still exist, so fall back to the manifest's own declared name.
		name := e.autorunName()
		e.log.Info("no state file, removing autorun by manifest name", "name", name)
		e.bestEffort("remove autorun entry", func() error {
			return e.mutator.RemoveAutorun(name)
		})
	}

	if err := e.removePluginArtifacts(); err != nil {
		return err
	}

	for i := range e.manifest.Modules {
		mod := &e.manifest.Modules[i]
		if !mod.Enabled {
			continue
		}
		if err := e.uninstallModule(mod); err != nil {
			return err
		}
	}

	e.bestEffort("remove install root", func() error {
		return os.RemoveAll(e.manifest.InstallRoot)
	})
	e.bestEffort("remove data root", func() error {
		return os.RemoveAll(e.dataRoot())
	})
	e.bestEffort("remove state file", func() error {
		err := os.Remove(e.paths.StateFile())
		if os.IsNotExist(err) {
			return nil
		}
		return err
	})
	return nil
}

// rollbackRecorded replays the state file's mutation log in reverse, all
// best-effort: the surrounding system state is inherently uncertain and
// removing an already-absent resource is expected.
func (e *Engine) rollbackRecorded(state *bundle.InstallState) {
	for _, name := range state.FirewallRules {
		rule := name
		e.bestEffort("remove firewall rule "+rule, func() error {
			return e.mutator.RemoveFirewallRule(rule)
		})
	}
	if state.AutorunName != "" {
		e.bestEffort("remove autorun entry", func() error {
			return e.mutator.RemoveAutorun(state.AutorunName)
		})
	}
	if state.ServiceName != "" {
		e.bestEffort("remove service", func() error {
			return e.mutator.RemoveService(state.ServiceName)
		})
	}
	for _, sc := range state.CreatedShortcuts {
		path := sc.Path
		e.bestEffort("remove shortcut "+path, func() error {
			err := os.Remove(path)
			if os.IsNotExist(err) {
				return nil
			}
			return err
		})
	}
}

// uninstallModule reverses one module. Native-installer modules run their
// declared uninstaller; this is the one genuinely fallible external step
// and its failure propagates. A module without an uninstaller is skipped
// with a warning, not failed. File-copy modules have their computed
// destination removed best-effort.
func (e *Engine) uninstallModule(mod *bundle.ModuleManifest) error {
	switch {
	case mod.Kind.NativeInstaller():
		if mod.Uninstaller == nil {
			e.log.Warn("module has no uninstaller, skipping", "module", mod.ID, "name", mod.DisplayName)
			return nil
		}
		e.log.Info("uninstalling module", "module", mod.ID, "name", mod.DisplayName)
		if err := e.runInstaller(*mod.Uninstaller); err != nil {
			return fmt.Errorf("uninstall module %s: %w", mod.ID, err)
		}
	case mod.Kind == bundle.ModuleKindFileCopy:
		dir := mod.InstallDir(e.manifest.InstallRoot)
		if _, err := os.Stat(dir); err == nil {
			e.log.Info("removing module directory", "module", mod.ID, "dir", dir)
			e.bestEffort("remove module directory "+dir, func() error {
				return os.RemoveAll(dir)
			})
		}
	}
	return nil
}

// removePluginArtifacts deletes every registration artifact in the plugin
// directory. A missing directory means there is nothing to do; individual
// deletions are best-effort.
func (e *Engine) removePluginArtifacts() error {
	dir := e.pluginDir()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read plugin directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		e.bestEffort("remove plugin registration "+path, func() error {
			return os.Remove(path)
		})
	}
	return nil
}
