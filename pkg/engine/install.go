package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/deskbundle/deskbundle/internal/hostlock"
	"github.com/deskbundle/deskbundle/pkg/bundle"
)

// Install runs the full install pass: prerequisites, then every enabled
// module in manifest order, then system integration, then the state file.
// Any failure aborts immediately; no later module is attempted and no state
// file is written, leaving whatever partial mutations exist on the host for
// uninstall's fallback paths to clean up.
func (e *Engine) Install() error {
	lock, err := hostlock.Acquire(e.paths.LockFile(), e.log)
	if err != nil {
		return err
	}
	defer lock.Release()

	e.log.Info("starting install",
		"product", e.manifest.ProductName, "version", e.manifest.Version)

	if err := e.paths.EnsureLayout(); err != nil {
		return err
	}
	if err := e.installPrerequisites(); err != nil {
		return err
	}

	state := bundle.NewInstallState(e.manifest.ProductCode, e.manifest.Version)
	for i := range e.manifest.Modules {
		mod := &e.manifest.Modules[i]
		if !mod.Enabled {
			continue
		}
		if err := e.installModule(state, mod); err != nil {
			return err
		}
	}

	if err := e.integrateSystem(state); err != nil {
		return err
	}

	if err := bundle.SaveState(e.paths.StateFile(), state); err != nil {
		return err
	}
	e.log.Info("install complete", "product", e.manifest.ProductName)
	return nil
}

// installPrerequisites installs each enabled prerequisite whose detection
// reports it missing. An enabled-but-undetected prerequisite without an
// installer descriptor is a configuration error.
func (e *Engine) installPrerequisites() error {
	for i := range e.manifest.Prerequisites {
		pre := &e.manifest.Prerequisites[i]
		if !pre.Enabled {
			continue
		}
		present, err := e.detector.Detect(e.baseDir, pre.Detect)
		if err != nil {
			return fmt.Errorf("detect prerequisite %s: %w", pre.ID, err)
		}
		if present {
			e.log.Info("prerequisite already installed", "prerequisite", pre.ID)
			continue
		}
		if pre.Installer == nil {
			return fmt.Errorf("prerequisite %s is missing and has no installer", pre.ID)
		}
		e.log.Info("installing prerequisite", "prerequisite", pre.ID, "name", pre.DisplayName)
		if err := e.runInstaller(*pre.Installer); err != nil {
			return fmt.Errorf("install prerequisite %s: %w", pre.ID, err)
		}
	}
	return nil
}

// installModule walks one module through detect -> skip | install ->
// configure -> register, appending its summary to the state.
//
// A module detected as already installed is recorded and skipped whole: its
// configuration and registration steps do not run, on the reading that a
// pre-existing installation is not ours to manage.
func (e *Engine) installModule(state *bundle.InstallState, mod *bundle.ModuleManifest) error {
	installed, err := e.detector.Detect(e.baseDir, mod.Detect)
	if err != nil {
		return fmt.Errorf("detect module %s: %w", mod.ID, err)
	}
	if installed {
		e.log.Info("module already installed, skipping", "module", mod.ID, "name", mod.DisplayName)
		state.Modules = append(state.Modules, bundle.InstalledModule{
			ID:          mod.ID,
			DisplayName: mod.DisplayName,
			Kind:        string(mod.Kind),
			Installed:   true,
		})
		return nil
	}

	e.log.Info("installing module", "module", mod.ID, "name", mod.DisplayName, "kind", mod.Kind)
	switch {
	case mod.Kind.NativeInstaller():
		if mod.Installer == nil {
			return fmt.Errorf("module %s has no installer", mod.ID)
		}
		if err := e.runInstaller(*mod.Installer); err != nil {
			return fmt.Errorf("install module %s: %w", mod.ID, err)
		}
	case mod.Kind == bundle.ModuleKindFileCopy:
		if mod.Payload == nil {
			return fmt.Errorf("module %s has no payload", mod.ID)
		}
		src, err := bundle.ResolvePath(e.baseDir, mod.Payload.Path)
		if err != nil {
			return fmt.Errorf("resolve payload for module %s: %w", mod.ID, err)
		}
		dst := mod.InstallDir(e.manifest.InstallRoot)
		if err := copyTree(src, dst); err != nil {
			return fmt.Errorf("copy payload for module %s: %w", mod.ID, err)
		}
	default:
		return fmt.Errorf("module %s: unsupported kind %q", mod.ID, mod.Kind)
	}

	if err := e.applyModuleConfig(mod); err != nil {
		return fmt.Errorf("configure module %s: %w", mod.ID, err)
	}
	if err := e.writePluginArtifact(mod); err != nil {
		return fmt.Errorf("register module %s: %w", mod.ID, err)
	}

	state.Modules = append(state.Modules, bundle.InstalledModule{
		ID:          mod.ID,
		DisplayName: mod.DisplayName,
		Kind:        string(mod.Kind),
		Installed:   true,
		InstallRoot: e.manifest.InstallRoot,
	})
	return nil
}

// applyModuleConfig creates the module's data subdirectory and performs the
// declared config-file text substitutions under the install root. A target
// file that does not exist is skipped with a warning: manifests routinely
// outlive minor payload layout changes.
func (e *Engine) applyModuleConfig(mod *bundle.ModuleManifest) error {
	if mod.Config.DataSubdir != "" {
		dir := filepath.Join(e.dataRoot(), mod.Config.DataSubdir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}

	for _, fr := range mod.Config.FileReplacements {
		target, err := bundle.ResolvePath(e.manifest.InstallRoot, fr.File)
		if err != nil {
			return fmt.Errorf("resolve config file: %w", err)
		}
		data, err := os.ReadFile(target)
		if os.IsNotExist(err) {
			e.log.Warn("config file does not exist, skipping", "module", mod.ID, "file", target)
			continue
		}
		if err != nil {
			return fmt.Errorf("read config file %s: %w", target, err)
		}
		content := string(data)
		for _, kv := range fr.Replacements {
			content = strings.ReplaceAll(content, kv.Key, kv.Value)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write config file %s: %w", target, err)
		}
	}
	return nil
}

// writePluginArtifact serializes the module's plugin registration, with the
// owning module id attached, under the plugin directory keyed by the
// registration's own id.
func (e *Engine) writePluginArtifact(mod *bundle.ModuleManifest) error {
	if mod.Plugin == nil {
		return nil
	}
	dir := e.pluginDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plugin directory %s: %w", dir, err)
	}

	artifact := bundle.NewPluginArtifact(*mod.Plugin, mod.ID)
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plugin registration %s: %w", mod.Plugin.ID, err)
	}
	path := filepath.Join(dir, mod.Plugin.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write plugin registration %s: %w", path, err)
	}
	e.log.Debug("wrote plugin registration", "plugin", mod.Plugin.ID, "path", path)
	return nil
}

// integrateSystem performs the post-module host integration: shortcut
// governance, then autorun, service and firewall registration. Every
// mutation is recorded in the state before the next one runs, so even a
// mid-integration failure leaves an accurate log for manual cleanup.
func (e *Engine) integrateSystem(state *bundle.InstallState) error {
	for i := range e.manifest.Modules {
		mod := &e.manifest.Modules[i]
		if !mod.Enabled {
			continue
		}
		for _, name := range mod.RemoveDesktopShortcuts {
			removed, err := e.mutator.RemoveDesktopShortcut(name)
			if err != nil {
				return fmt.Errorf("remove vendor shortcut %q: %w", name, err)
			}
			if removed {
				e.log.Info("removed vendor desktop shortcut", "name", name)
			}
		}
	}

	sc := e.manifest.Shortcuts
	if sc.Desktop || sc.StartMenu {
		target := filepath.Join(e.manifest.InstallRoot, sc.LauncherExe)
		icon := ""
		if sc.IconPath != "" {
			icon = filepath.Join(e.manifest.InstallRoot, sc.IconPath)
		}
		workDir := filepath.Dir(target)

		locations := []ShortcutLocation{}
		if sc.Desktop {
			locations = append(locations, ShortcutDesktop)
		}
		if sc.StartMenu {
			locations = append(locations, ShortcutStartMenu)
		}
		for _, loc := range locations {
			path, err := e.mutator.CreateShortcut(loc, sc.LauncherName, target, nil, workDir, icon)
			if err != nil {
				return fmt.Errorf("create %s shortcut: %w", loc, err)
			}
			state.CreatedShortcuts = append(state.CreatedShortcuts, bundle.CreatedShortcut{
				Location: string(loc),
				Path:     path,
			})
		}
	}

	if e.manifest.Autorun.Enabled {
		name := e.autorunName()
		command := e.manifest.Autorun.Command
		if command == "" {
			// Plain quotes only: %q would escape the backslashes in a
			// Windows install root and corrupt the Run value.
			command = `"` + filepath.Join(e.manifest.InstallRoot, sc.LauncherExe) + `"`
		}
		if err := e.mutator.SetAutorun(name, command); err != nil {
			return fmt.Errorf("set autorun entry %q: %w", name, err)
		}
		state.AutorunName = name
	}

	if e.manifest.Service.Enabled {
		exe := filepath.Join(e.manifest.InstallRoot, e.manifest.Service.Exe)
		if err := e.mutator.InstallService(e.manifest.Service, exe); err != nil {
			return fmt.Errorf("install service %q: %w", e.manifest.Service.Name, err)
		}
		state.ServiceName = e.manifest.Service.Name
	}

	if e.manifest.Firewall.Enabled {
		for _, rule := range e.manifest.Firewall.Rules {
			if err := e.mutator.AddFirewallRule(rule); err != nil {
				return fmt.Errorf("add firewall rule %q: %w", rule.Name, err)
			}
			state.FirewallRules = append(state.FirewallRules, rule.Name)
		}
	}

	return nil
}

// copyTree copies a file or directory tree, preserving relative structure
// and creating destination directories as needed. Used for file_copy
// payloads.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return copyFile(src, dst)
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dst, err)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", src, err)
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyTree(from, to); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(from, to); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Dir(dst), err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", dst, err)
	}
	return nil
}
