package winsys

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/kardianos/service"

	"github.com/deskbundle/deskbundle/pkg/bundle"
	"github.com/deskbundle/deskbundle/pkg/engine"
)

// Mutator is the production SystemMutator: shortcuts via the shell,
// services via the service manager, firewall rules via netsh, autorun via
// the HKLM Run key. Firewall commands go through the engine's ProcessRunner
// so their exact invocations stay reproducible from logs.
type Mutator struct {
	runner engine.ProcessRunner
	log    hclog.Logger
}

// NewMutator builds the production mutator.
func NewMutator(runner engine.ProcessRunner, logger hclog.Logger) *Mutator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Mutator{runner: runner, log: logger}
}

// CreateShortcut implements engine.SystemMutator.
func (m *Mutator) CreateShortcut(loc engine.ShortcutLocation, name, target string, args []string, workingDir, iconPath string) (string, error) {
	path, err := createShortcut(loc, name, target, strings.Join(args, " "), workingDir, iconPath)
	if err != nil {
		return "", err
	}
	m.log.Debug("created shortcut", "location", loc, "path", path)
	return path, nil
}

// RemoveDesktopShortcut implements engine.SystemMutator.
func (m *Mutator) RemoveDesktopShortcut(name string) (bool, error) {
	return removeDesktopShortcut(name)
}

// InstallService registers the background service with the host's service
// manager.
func (m *Mutator) InstallService(svc bundle.ServiceManifest, exePath string) error {
	cfg := &service.Config{
		Name:        svc.Name,
		DisplayName: svc.DisplayName,
		Description: svc.Description,
		Executable:  exePath,
		Arguments:   svc.Args,
		Option:      service.KeyValue{},
	}
	if runtime.GOOS == "windows" {
		cfg.Option["OnFailure"] = "restart"
	}
	s, err := service.New(nil, cfg)
	if err != nil {
		return fmt.Errorf("create service config %q: %w", svc.Name, err)
	}
	if err := s.Install(); err != nil {
		return fmt.Errorf("install service %q: %w", svc.Name, err)
	}
	m.log.Info("installed service", "name", svc.Name)
	return nil
}

// RemoveService unregisters a service by name.
func (m *Mutator) RemoveService(name string) error {
	s, err := service.New(nil, &service.Config{Name: name})
	if err != nil {
		return fmt.Errorf("create service config %q: %w", name, err)
	}
	if err := s.Uninstall(); err != nil {
		return fmt.Errorf("uninstall service %q: %w", name, err)
	}
	m.log.Info("removed service", "name", name)
	return nil
}

// AddFirewallRule creates a host firewall rule via netsh advfirewall.
func (m *Mutator) AddFirewallRule(rule bundle.FirewallRule) error {
	args := []string{
		"advfirewall", "firewall", "add", "rule",
		"name=" + rule.Name,
		"dir=" + firewallDirection(rule.Direction),
		"action=" + firewallAction(rule.Action),
		"program=" + rule.Program,
		"profile=" + firewallProfile(rule.Profile),
		"enable=yes",
	}
	return m.netsh("add firewall rule "+rule.Name, args)
}

// RemoveFirewallRule deletes a host firewall rule by name.
func (m *Mutator) RemoveFirewallRule(name string) error {
	args := []string{"advfirewall", "firewall", "delete", "rule", "name=" + name}
	return m.netsh("delete firewall rule "+name, args)
}

// SetAutorun implements engine.SystemMutator.
func (m *Mutator) SetAutorun(name, command string) error {
	if err := setAutorun(name, command); err != nil {
		return err
	}
	m.log.Info("set autorun entry", "name", name)
	return nil
}

// RemoveAutorun implements engine.SystemMutator.
func (m *Mutator) RemoveAutorun(name string) error {
	return removeAutorun(name)
}

func (m *Mutator) netsh(what string, args []string) error {
	m.log.Debug("running netsh", "args", args)
	res, err := m.runner.Run("netsh", args)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s: netsh exited with code %d\n%s\n%s",
			what, res.ExitCode, res.Stdout, res.Stderr)
	}
	return nil
}

// The manifest's firewall enums default to their zero values; map empties
// to the documented defaults (in, allow, any).

func firewallDirection(d bundle.FirewallDirection) string {
	if d == "" {
		return string(bundle.FirewallIn)
	}
	return string(d)
}

func firewallAction(a bundle.FirewallAction) string {
	if a == "" {
		return string(bundle.FirewallAllow)
	}
	return string(a)
}

func firewallProfile(p bundle.FirewallProfile) string {
	if p == "" {
		return string(bundle.FirewallProfileAny)
	}
	return string(p)
}
