package bundle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install-state.json")

	state := NewInstallState("AcmeSuite", "2.4.0")
	state.Modules = append(state.Modules, InstalledModule{
		ID:          "core",
		DisplayName: "Acme Core",
		Kind:        "msi",
		Installed:   true,
		InstallRoot: `C:\Program Files\AcmeSuite`,
	})
	state.CreatedShortcuts = append(state.CreatedShortcuts, CreatedShortcut{
		Location: "desktop",
		Path:     `C:\Users\Public\Desktop\Acme Suite.lnk`,
	})
	state.FirewallRules = append(state.FirewallRules, "Acme Core")
	state.ServiceName = "AcmeAgent"
	state.AutorunName = "AcmeSuite"

	if err := SaveState(path, state); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadState returned nil for existing file")
	}
	if loaded.StateID != state.StateID {
		t.Fatalf("state id = %s, want %s", loaded.StateID, state.StateID)
	}
	if loaded.ProductCode != "AcmeSuite" || loaded.Version != "2.4.0" {
		t.Fatalf("product fields = %q / %q", loaded.ProductCode, loaded.Version)
	}
	if len(loaded.Modules) != 1 || loaded.Modules[0].ID != "core" {
		t.Fatalf("modules = %+v", loaded.Modules)
	}
	if len(loaded.CreatedShortcuts) != 1 || loaded.CreatedShortcuts[0].Location != "desktop" {
		t.Fatalf("shortcuts = %+v", loaded.CreatedShortcuts)
	}
	if loaded.ServiceName != "AcmeAgent" || loaded.AutorunName != "AcmeSuite" {
		t.Fatalf("service/autorun = %q / %q", loaded.ServiceName, loaded.AutorunName)
	}
}

func TestLoadStateMissingFile(t *testing.T) {
	state, err := LoadState(filepath.Join(t.TempDir(), "no-such-state.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != nil {
		t.Fatalf("state = %+v, want nil", state)
	}
}

func TestLoadStateCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install-state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadState(path); err == nil {
		t.Fatal("expected parse error")
	}
}
