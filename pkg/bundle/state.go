package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// InstallState records what a successful install run changed on the host,
// so uninstall can reverse it precisely. It is built up step by step during
// install and persisted once, at the very end. A failed install therefore
// leaves no state file; uninstall tolerates that (manifest fallbacks).
type InstallState struct {
	StateID          uuid.UUID         `json:"state_id"`
	ProductCode      string            `json:"product_code"`
	Version          string            `json:"version"`
	InstalledAt      time.Time         `json:"installed_at"`
	Modules          []InstalledModule `json:"modules,omitempty"`
	CreatedShortcuts []CreatedShortcut `json:"created_shortcuts,omitempty"`
	FirewallRules    []string          `json:"firewall_rules,omitempty"`
	ServiceName      string            `json:"service_name,omitempty"`
	AutorunName      string            `json:"autorun_name,omitempty"`
}

// NewInstallState starts an empty state record for one install run.
func NewInstallState(productCode, version string) *InstallState {
	return &InstallState{
		StateID:     uuid.New(),
		ProductCode: productCode,
		Version:     version,
		InstalledAt: time.Now().UTC(),
	}
}

// InstalledModule summarizes one module's outcome. installed=true with an
// empty install root means the module was detected as already present and
// skipped.
type InstalledModule struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Kind          string `json:"kind"`
	Installed     bool   `json:"installed"`
	InstallRoot   string `json:"install_root,omitempty"`
	UninstallHint string `json:"uninstall_hint,omitempty"`
}

// CreatedShortcut records one .lnk file the install run created, so
// uninstall deletes only what this product put there.
type CreatedShortcut struct {
	Location string `json:"location"`
	Path     string `json:"path"`
}

// SaveState writes the state document to path.
func SaveState(path string, state *InstallState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode install state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write install state %s: %w", path, err)
	}
	return nil
}

// LoadState reads a state document. A missing file returns (nil, nil);
// a present-but-unreadable file is an error.
func LoadState(path string) (*InstallState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read install state %s: %w", path, err)
	}
	var state InstallState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse install state %s: %w", path, err)
	}
	return &state, nil
}
