// Package engine implements the manifest-driven install/uninstall
// orchestration: per-module detection, ordered fail-fast installation,
// mutation recording, and best-effort reverse replay on uninstall.
//
// The engine never touches a platform API directly. Everything with a side
// effect outside the filesystem goes through the Detector, SystemMutator and
// ProcessRunner interfaces, so the whole package unit-tests with fakes.
package engine

import (
	"github.com/hashicorp/go-hclog"

	"github.com/deskbundle/deskbundle/pkg/bundle"
)

// Detector evaluates a detection rule against the live system. Relative
// file paths in rules resolve against baseDir (the manifest's directory).
// Implementations return a definitive yes/no or an error, never a guess.
type Detector interface {
	Detect(baseDir string, rule bundle.DetectRule) (bool, error)
}

// ShortcutLocation is where a shortcut is placed. The values double as the
// location strings recorded in the install state.
type ShortcutLocation string

const (
	ShortcutDesktop   ShortcutLocation = "desktop"
	ShortcutStartMenu ShortcutLocation = "start_menu"
)

// SystemMutator performs the concrete OS mutations the engine orchestrates.
// Every mutation has an inverse so uninstall can replay the recorded log
// backwards.
type SystemMutator interface {
	// CreateShortcut writes a shortcut and returns its full path.
	CreateShortcut(loc ShortcutLocation, name, target string, args []string, workingDir, iconPath string) (string, error)
	// RemoveDesktopShortcut removes a desktop shortcut by display name.
	// Returns false when no such shortcut existed.
	RemoveDesktopShortcut(name string) (bool, error)
	InstallService(svc bundle.ServiceManifest, exePath string) error
	RemoveService(name string) error
	AddFirewallRule(rule bundle.FirewallRule) error
	RemoveFirewallRule(name string) error
	SetAutorun(name, command string) error
	RemoveAutorun(name string) error
}

// Options carries the engine's collaborators. Detector, Mutator and Runner
// are required for install/uninstall; detect-only callers may omit the
// mutator and runner.
type Options struct {
	Detector Detector
	Mutator  SystemMutator
	Runner   ProcessRunner
	Logger   hclog.Logger
}

// Engine orchestrates one product deployment described by a manifest.
// It is single-threaded and fully synchronous: each step blocks until done,
// and the next begins only after the previous one returned.
type Engine struct {
	manifest *bundle.BundleManifest
	baseDir  string
	paths    bundle.Paths
	detector Detector
	mutator  SystemMutator
	runner   ProcessRunner
	log      hclog.Logger
}

// New builds an engine for one manifest. baseDir is the manifest's
// containing directory; relative manifest paths resolve against it.
func New(manifest *bundle.BundleManifest, baseDir string, paths bundle.Paths, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Engine{
		manifest: manifest,
		baseDir:  baseDir,
		paths:    paths,
		detector: opts.Detector,
		mutator:  opts.Mutator,
		runner:   opts.Runner,
		log:      logger,
	}
}

// dataRoot is the persistent data root: the manifest override, or the
// default under the product's state directory.
func (e *Engine) dataRoot() string {
	if e.manifest.PostConfig.DataRoot != "" {
		return e.manifest.PostConfig.DataRoot
	}
	return e.paths.DataRoot()
}

// pluginDir is where plugin registration artifacts live.
func (e *Engine) pluginDir() string {
	if e.manifest.PostConfig.PluginDir != "" {
		return e.manifest.PostConfig.PluginDir
	}
	return e.paths.PluginDir()
}

// autorunName is the registry value name for the login auto-start entry.
// Empty manifest names fall back to the product code so install and the
// no-state uninstall path agree on the same name.
func (e *Engine) autorunName() string {
	if e.manifest.Autorun.Name != "" {
		return e.manifest.Autorun.Name
	}
	return e.manifest.ProductCode
}

// bestEffort runs one non-critical teardown step: failures are logged at
// warning level and swallowed. Removal of an already-absent resource is
// expected and benign, so nothing on this path may abort the run.
func (e *Engine) bestEffort(step string, fn func() error) {
	if err := fn(); err != nil {
		e.log.Warn("best-effort step failed", "step", step, "error", err)
	}
}
