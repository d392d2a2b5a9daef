// deskbundle installs, verifies and uninstalls multi-module desktop bundles
// described by a bundle-manifest.json.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/deskbundle/deskbundle/pkg/bundle"
	"github.com/deskbundle/deskbundle/pkg/engine"
	"github.com/deskbundle/deskbundle/pkg/logging"
	"github.com/deskbundle/deskbundle/pkg/winsys"
)

const version = "0.2.0"

var (
	manifestPath string
	silent       bool
	logLevel     string
	rootCmd      *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:           "deskbundle",
		Short:         "Install and uninstall multi-module desktop bundles",
		Long:          "deskbundle orchestrates installation, idempotent re-installation and\nuninstallation of the modules declared in a bundle manifest.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "bundle-manifest.json", "Path to the bundle manifest")
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false, "Reduce output for scripted deployment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(installCmd(), uninstallCmd(), detectCmd(), doctorCmd())
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Printf("deskbundle %s\n", version)
		os.Exit(0)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newEngine loads the manifest and wires the production collaborators.
func newEngine() (*engine.Engine, hclog.Logger, error) {
	logger := logging.New("deskbundle", logLevel)

	manifest, baseDir, err := bundle.LoadManifest(manifestPath)
	if err != nil {
		return nil, nil, err
	}
	paths, err := bundle.DefaultPaths(manifest.ProductCode)
	if err != nil {
		return nil, nil, err
	}

	runner := engine.ExecRunner{}
	eng := engine.New(manifest, baseDir, paths, engine.Options{
		Detector: winsys.Detector{},
		Mutator:  winsys.NewMutator(runner, logger),
		Runner:   runner,
		Logger:   logger,
	})
	return eng, logger, nil
}

// requireElevation rejects mutation commands that are not running with
// administrator privileges. DESKBUNDLE_ALLOW_NON_ADMIN=1 bypasses the check
// for automated tests.
func requireElevation(op string) error {
	if os.Getenv("DESKBUNDLE_ALLOW_NON_ADMIN") == "1" {
		return nil
	}
	if winsys.IsElevated() {
		return nil
	}
	return fmt.Errorf("%s requires administrator privileges; re-run elevated", op)
}

func installCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install all enabled modules (idempotent: detected modules are skipped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireElevation("install"); err != nil {
				return err
			}
			eng, _, err := newEngine()
			if err != nil {
				return err
			}
			if err := eng.Install(); err != nil {
				return err
			}
			if !silent {
				fmt.Println("install complete")
			}
			return nil
		},
	}
}

func uninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Roll back a recorded installation and remove all modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireElevation("uninstall"); err != nil {
				return err
			}
			eng, _, err := newEngine()
			if err != nil {
				return err
			}
			if err := eng.Uninstall(); err != nil {
				return err
			}
			if !silent {
				fmt.Println("uninstall complete")
			}
			return nil
		},
	}
}

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Report each enabled module's detection state without mutating anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := newEngine()
			if err != nil {
				return err
			}
			results, err := eng.DetectModules()
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%s (%s) = %t\n", r.DisplayName, r.ID, r.Installed)
			}
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report privilege and prerequisite status without mutating anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := newEngine()
			if err != nil {
				return err
			}
			fmt.Printf("admin = %t\n", winsys.IsElevated())
			results, err := eng.DetectPrerequisites()
			if err != nil {
				return err
			}
			for _, r := range results {
				status := "missing"
				if r.Installed {
					status = "installed"
				}
				fmt.Printf("%s (%s) = %s\n", r.DisplayName, r.ID, status)
			}
			return nil
		},
	}
}
