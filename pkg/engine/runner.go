package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"slices"

	"github.com/deskbundle/deskbundle/pkg/bundle"
)

// DefaultSuccessExitCodes applies when an installer descriptor declares no
// success set: 0 is plain success, 3010 and 1641 are the Windows Installer
// success-pending-reboot codes.
var DefaultSuccessExitCodes = []int{0, 3010, 1641}

// ExecResult is the outcome of a completed child process.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ProcessRunner spawns an external installer or uninstaller synchronously
// and reports its exit code and captured output. A spawn failure (binary
// missing, permission denied) is an error; a non-zero exit code is not --
// classification against the success set is the engine's job.
type ProcessRunner interface {
	Run(path string, args []string) (ExecResult, error)
}

// ExecRunner runs processes with os/exec. There is no timeout and no
// cancellation: external installers are waited on unconditionally, and no
// retry is attempted since installers are not assumed safe to re-run blindly.
type ExecRunner struct{}

// Run implements ProcessRunner.
func (ExecRunner) Run(path string, args []string) (ExecResult, error) {
	cmd := exec.Command(path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return ExecResult{}, fmt.Errorf("start process %s: %w", path, err)
	}
	return res, nil
}

// runInstaller resolves and executes an installer descriptor, classifying
// the exit code against its success set. The error for a rejected exit code
// carries the captured output verbatim to aid diagnosis.
func (e *Engine) runInstaller(inst bundle.PayloadInstaller) error {
	exe, err := bundle.ResolvePath(e.baseDir, inst.Path)
	if err != nil {
		return fmt.Errorf("resolve installer path: %w", err)
	}

	e.log.Info("running installer", "path", exe, "args", inst.Args)
	res, err := e.runner.Run(exe, inst.Args)
	if err != nil {
		return fmt.Errorf("run installer %s: %w", exe, err)
	}

	codes := inst.SuccessExitCodes
	if len(codes) == 0 {
		codes = DefaultSuccessExitCodes
	}
	if slices.Contains(codes, res.ExitCode) {
		e.log.Debug("installer finished", "path", exe, "exit_code", res.ExitCode)
		return nil
	}
	return fmt.Errorf("installer %s exited with unexpected code %d\nstdout:\n%s\nstderr:\n%s",
		exe, res.ExitCode, res.Stdout, res.Stderr)
}
