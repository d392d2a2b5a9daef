package engine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deskbundle/deskbundle/pkg/bundle"
)

func TestUninstallFileCopyRoundTrip(t *testing.T) {
	manifest, baseDir := fileCopyManifest(t)
	env := newTestEnv(t, manifest, baseDir)

	require.NoError(t, env.eng.Install())
	require.NoError(t, env.eng.Uninstall())

	for _, gone := range []string{
		manifest.InstallRoot,
		env.paths.DataRoot(),
		env.paths.Root(),
	} {
		_, err := os.Stat(gone)
		require.True(t, os.IsNotExist(err), "%s should be removed", gone)
	}
}

func TestUninstallReversesRecordedMutations(t *testing.T) {
	manifest, baseDir := fileCopyManifest(t)
	manifest.Shortcuts = bundle.ShortcutManifest{
		LauncherExe:  "launcher/acme.exe",
		LauncherName: "Acme Suite",
		Desktop:      true,
	}
	manifest.Autorun = bundle.AutorunManifest{Enabled: true, Name: "AcmeSuite"}
	manifest.Service = bundle.ServiceManifest{Enabled: true, Name: "AcmeAgent", Exe: "agent/agent.exe"}
	manifest.Firewall = bundle.FirewallManifest{
		Enabled: true,
		Rules:   []bundle.FirewallRule{{Name: "Acme In", Program: "agent/agent.exe"}},
	}
	env := newTestEnv(t, manifest, baseDir)

	require.NoError(t, env.eng.Install())
	shortcutPath := env.mutator.shortcuts[0]
	_, err := os.Stat(shortcutPath)
	require.NoError(t, err)

	require.NoError(t, env.eng.Uninstall())

	require.Equal(t, []string{"Acme In"}, env.mutator.removedRules)
	require.Equal(t, []string{"AcmeSuite"}, env.mutator.removedRuns)
	require.Equal(t, []string{"AcmeAgent"}, env.mutator.removedSvcs)
	_, err = os.Stat(shortcutPath)
	require.True(t, os.IsNotExist(err), "recorded shortcut should be deleted")
}

func TestUninstallWithoutStateFallsBackToManifestAutorun(t *testing.T) {
	manifest, baseDir := fileCopyManifest(t)
	manifest.Autorun = bundle.AutorunManifest{Enabled: true, Name: "AcmeSuite"}
	env := newTestEnv(t, manifest, baseDir)

	// No install ran: no state file exists.
	require.NoError(t, env.eng.Uninstall())
	require.Equal(t, []string{"AcmeSuite"}, env.mutator.removedRuns)
}

func TestUninstallSurvivesMutatorFailures(t *testing.T) {
	manifest, baseDir := fileCopyManifest(t)
	manifest.Service = bundle.ServiceManifest{Enabled: true, Name: "AcmeAgent", Exe: "agent/agent.exe"}
	env := newTestEnv(t, manifest, baseDir)

	require.NoError(t, env.eng.Install())
	env.mutator.failRemoveService = true

	// Service removal fails but the run carries on and still cleans the disk.
	require.NoError(t, env.eng.Uninstall())
	_, err := os.Stat(manifest.InstallRoot)
	require.True(t, os.IsNotExist(err))
}

func TestUninstallerFailurePropagates(t *testing.T) {
	manifest, baseDir := fileCopyManifest(t)
	require.NoError(t, os.MkdirAll(filepath.Join(baseDir, "payload"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "payload", "core.msi"), nil, 0o644))
	manifest.Modules = []bundle.ModuleManifest{{
		ID:          "core",
		DisplayName: "Acme Core",
		Enabled:     true,
		Kind:        bundle.ModuleKindMSI,
		Installer:   &bundle.PayloadInstaller{Path: "payload/core.msi"},
		Uninstaller: &bundle.PayloadInstaller{Path: "payload/core.msi", Args: []string{"/x"}},
	}}
	env := newTestEnv(t, manifest, baseDir)
	env.runner.exitCodes["core.msi"] = 1603

	err := env.eng.Uninstall()
	require.Error(t, err)
	require.Contains(t, err.Error(), "core")
}

func TestUninstallSkipsModuleWithoutUninstaller(t *testing.T) {
	manifest, baseDir := fileCopyManifest(t)
	manifest.Modules = []bundle.ModuleManifest{{
		ID:        "core",
		Enabled:   true,
		Kind:      bundle.ModuleKindMSI,
		Installer: &bundle.PayloadInstaller{Path: "payload/core.msi"},
	}}
	env := newTestEnv(t, manifest, baseDir)

	require.NoError(t, env.eng.Uninstall())
	require.Empty(t, env.runner.calls)
}

func TestUninstallRemovesPluginArtifacts(t *testing.T) {
	manifest, baseDir := fileCopyManifest(t)
	env := newTestEnv(t, manifest, baseDir)

	require.NoError(t, env.eng.Install())
	artifact := filepath.Join(env.paths.PluginDir(), "plugin_a.json")
	_, err := os.Stat(artifact)
	require.NoError(t, err)

	require.NoError(t, env.eng.Uninstall())
	_, err = os.Stat(artifact)
	require.True(t, os.IsNotExist(err))
}

func TestDetectModulesReport(t *testing.T) {
	manifest, baseDir := fileCopyManifest(t)
	marker := filepath.Join(baseDir, "present.marker")
	require.NoError(t, os.WriteFile(marker, nil, 0o644))
	manifest.Modules = append(manifest.Modules, bundle.ModuleManifest{
		ID:          "module_b",
		DisplayName: "Module B",
		Enabled:     true,
		Kind:        bundle.ModuleKindFileCopy,
		Payload:     &bundle.ModulePayload{Path: "payload/myapp"},
		Detect: bundle.DetectRule{
			Kind: bundle.DetectFileExists,
			File: &bundle.FileExistsRule{Path: marker},
		},
	})
	env := newTestEnv(t, manifest, baseDir)

	results, err := env.eng.DetectModules()
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "module_a", results[0].ID)
	require.False(t, results[0].Installed)
	require.Equal(t, "module_b", results[1].ID)
	require.True(t, results[1].Installed)
}
