// Package bundle defines the deployment manifest and install-state models
// shared by the orchestration engine, the platform layer and the CLI.
//
// Everything here is plain data plus (de)serialization. Tagged variants
// (detect rules, expected registry values, healthchecks) are closed unions:
// an unknown tag is a parse error, never a silent default.
package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// BundleManifest is the root object of bundle-manifest.json: one product
// made of independently packaged modules, plus the system integration the
// installer performs around them.
type BundleManifest struct {
	ProductName   string                 `json:"product_name"`
	ProductCode   string                 `json:"product_code"`
	Version       string                 `json:"version"`
	InstallRoot   string                 `json:"install_root"`
	Prerequisites []PrerequisiteManifest `json:"prerequisites,omitempty"`
	Modules       []ModuleManifest       `json:"modules"`
	Shortcuts     ShortcutManifest       `json:"shortcuts"`
	PostConfig    PostConfigManifest     `json:"post_config,omitempty"`
	Firewall      FirewallManifest       `json:"firewall,omitempty"`
	Service       ServiceManifest        `json:"service,omitempty"`
	Autorun       AutorunManifest        `json:"autorun,omitempty"`
}

// LoadManifest reads and parses a bundle manifest. The returned base
// directory is the manifest's containing directory; relative paths inside
// the manifest resolve against it.
func LoadManifest(path string) (*BundleManifest, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m BundleManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	baseDir := filepath.Dir(path)
	return &m, baseDir, nil
}

// Validate checks the structural invariants the engine relies on: unique
// module ids, and per-kind descriptor requirements.
func (m *BundleManifest) Validate() error {
	if m.ProductCode == "" {
		return fmt.Errorf("product_code is required")
	}
	if m.InstallRoot == "" {
		return fmt.Errorf("install_root is required")
	}
	seen := make(map[string]bool, len(m.Modules))
	for i := range m.Modules {
		mod := &m.Modules[i]
		if mod.ID == "" {
			return fmt.Errorf("modules[%d]: id is required", i)
		}
		if seen[mod.ID] {
			return fmt.Errorf("duplicate module id %q", mod.ID)
		}
		seen[mod.ID] = true
		switch mod.Kind {
		case "":
			return fmt.Errorf("module %s: kind is required", mod.ID)
		case ModuleKindFileCopy:
			if mod.Payload == nil {
				return fmt.Errorf("module %s: file_copy requires a payload", mod.ID)
			}
		case ModuleKindMSI, ModuleKindEXE:
			if mod.Enabled && mod.Installer == nil {
				return fmt.Errorf("module %s: %s requires an installer", mod.ID, mod.Kind)
			}
		}
	}
	return nil
}

// PrerequisiteManifest is one platform prerequisite (a runtime, a
// redistributable) installed before any module is processed.
type PrerequisiteManifest struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Enabled     bool              `json:"enabled"`
	Detect      DetectRule        `json:"detect"`
	Installer   *PayloadInstaller `json:"installer,omitempty"`
}

// ModuleKind selects how a module is installed.
type ModuleKind string

const (
	// ModuleKindMSI runs a Windows Installer package.
	ModuleKindMSI ModuleKind = "msi"
	// ModuleKindEXE runs a vendor executable installer.
	ModuleKindEXE ModuleKind = "exe"
	// ModuleKindFileCopy copies a payload tree under the install root.
	ModuleKindFileCopy ModuleKind = "file_copy"
)

// NativeInstaller reports whether the module is installed by an external
// installer process rather than a payload copy.
func (k ModuleKind) NativeInstaller() bool {
	return k == ModuleKindMSI || k == ModuleKindEXE
}

func (k *ModuleKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch ModuleKind(s) {
	case ModuleKindMSI, ModuleKindEXE, ModuleKindFileCopy:
		*k = ModuleKind(s)
		return nil
	}
	return fmt.Errorf("unknown module kind %q", s)
}

// ModuleManifest is one independently installable unit.
type ModuleManifest struct {
	ID                     string              `json:"id"`
	DisplayName            string              `json:"display_name"`
	Enabled                bool                `json:"enabled"`
	Kind                   ModuleKind          `json:"kind"`
	Detect                 DetectRule          `json:"detect"`
	Payload                *ModulePayload      `json:"payload,omitempty"`
	Installer              *PayloadInstaller   `json:"installer,omitempty"`
	Uninstaller            *PayloadInstaller   `json:"uninstaller,omitempty"`
	RemoveDesktopShortcuts []string            `json:"remove_desktop_shortcuts,omitempty"`
	Plugin                 *PluginRegistration `json:"plugin,omitempty"`
	Config                 ModuleConfig        `json:"config"`
}

// InstallDir computes the module's destination under the install root for
// file_copy modules: the declared subdirectory, or the module id.
func (m *ModuleManifest) InstallDir(installRoot string) string {
	if m.Payload != nil && m.Payload.InstallSubdir != "" {
		return filepath.Join(installRoot, m.Payload.InstallSubdir)
	}
	return filepath.Join(installRoot, m.ID)
}

// ModulePayload configures file_copy installation.
type ModulePayload struct {
	Path          string `json:"path"`
	InstallSubdir string `json:"install_subdir,omitempty"`
}

// PayloadInstaller describes an external installer or uninstaller process.
// An empty success_exit_codes list means the engine's default set applies.
type PayloadInstaller struct {
	Path             string   `json:"path"`
	Args             []string `json:"args,omitempty"`
	SuccessExitCodes []int    `json:"success_exit_codes,omitempty"`
}

// ModuleConfig is the post-install configuration applied after a module is
// laid down.
type ModuleConfig struct {
	ServerURL        string            `json:"server_url,omitempty"`
	DataSubdir       string            `json:"data_subdir,omitempty"`
	FileReplacements []FileReplacement `json:"file_replacements,omitempty"`
}

// FileReplacement rewrites one text file under the install root by literal
// substring substitution.
type FileReplacement struct {
	File         string     `json:"file"`
	Replacements []KeyValue `json:"replacements"`
}

// KeyValue is a single substitution pair; keys are usually placeholders
// like {{SERVER_URL}}.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ShortcutManifest configures shortcut governance and the unified entry
// point shortcut.
type ShortcutManifest struct {
	LauncherExe  string `json:"launcher_exe"`
	LauncherName string `json:"launcher_name"`
	IconPath     string `json:"icon_path,omitempty"`
	StartMenu    bool   `json:"start_menu"`
	Desktop      bool   `json:"desktop"`
}

// PostConfigManifest overrides the default on-disk layout.
type PostConfigManifest struct {
	ServerURL string `json:"server_url,omitempty"`
	DataRoot  string `json:"data_root,omitempty"`
	PluginDir string `json:"plugin_dir,omitempty"`
}

// FirewallManifest enables firewall rule management for the product.
type FirewallManifest struct {
	Enabled bool           `json:"enabled"`
	Rules   []FirewallRule `json:"rules,omitempty"`
}

// FirewallRule is one host firewall rule, created on install and removed
// by name on uninstall.
type FirewallRule struct {
	Name      string            `json:"name"`
	Program   string            `json:"program"`
	Direction FirewallDirection `json:"direction"`
	Action    FirewallAction    `json:"action"`
	Profile   FirewallProfile   `json:"profile"`
}

// FirewallDirection is the rule direction; the zero value means inbound.
type FirewallDirection string

const (
	FirewallIn  FirewallDirection = "in"
	FirewallOut FirewallDirection = "out"
)

// FirewallAction is the rule action; the zero value means allow.
type FirewallAction string

const (
	FirewallAllow FirewallAction = "allow"
	FirewallBlock FirewallAction = "block"
)

// FirewallProfile selects which network profiles the rule applies to; the
// zero value means any.
type FirewallProfile string

const (
	FirewallProfileAny     FirewallProfile = "any"
	FirewallProfileDomain  FirewallProfile = "domain"
	FirewallProfilePrivate FirewallProfile = "private"
	FirewallProfilePublic  FirewallProfile = "public"
)

// ServiceManifest configures an optional background service registered at
// install time.
type ServiceManifest struct {
	Enabled     bool     `json:"enabled"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Description string   `json:"description,omitempty"`
	Exe         string   `json:"exe,omitempty"`
	Args        []string `json:"args,omitempty"`
}

// AutorunManifest configures an optional login auto-start entry
// (HKLM Run on Windows).
type AutorunManifest struct {
	Enabled bool   `json:"enabled"`
	Name    string `json:"name,omitempty"`
	Command string `json:"command,omitempty"`
}
