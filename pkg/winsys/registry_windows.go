//go:build windows

package winsys

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"

	"github.com/deskbundle/deskbundle/pkg/bundle"
)

const runKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`

func hiveKey(hive bundle.RegistryHive) (registry.Key, string, error) {
	switch hive {
	case bundle.HiveHKLM:
		return registry.LOCAL_MACHINE, "HKLM", nil
	case bundle.HiveHKCU:
		return registry.CURRENT_USER, "HKCU", nil
	}
	return 0, "", fmt.Errorf("unknown registry hive %q", hive)
}

// detectRegistryValue reads the rule's value as its declared type and
// compares it against the expectation. An absent key or value is the normal
// "not installed" signal and reports false; only genuine access failures
// (permissions, I/O) error. Type-mismatched expectations compare to false
// inside Matches.
func detectRegistryValue(rule *bundle.RegistryValueRule) (bool, error) {
	root, rootName, err := hiveKey(rule.Hive)
	if err != nil {
		return false, err
	}
	k, err := registry.OpenKey(root, rule.Key, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open registry key %s\\%s: %w", rootName, rule.Key, err)
	}
	defer k.Close()

	switch rule.Kind {
	case bundle.RegDword:
		v, _, err := k.GetIntegerValue(rule.ValueName)
		if err != nil {
			if errors.Is(err, registry.ErrNotExist) {
				return false, nil
			}
			return false, fmt.Errorf("read dword %s\\%s!%s: %w", rootName, rule.Key, rule.ValueName, err)
		}
		return rule.Expected.Matches(bundle.RegDword, uint32(v), ""), nil
	case bundle.RegSz:
		s, _, err := k.GetStringValue(rule.ValueName)
		if err != nil {
			if errors.Is(err, registry.ErrNotExist) {
				return false, nil
			}
			return false, fmt.Errorf("read string %s\\%s!%s: %w", rootName, rule.Key, rule.ValueName, err)
		}
		return rule.Expected.Matches(bundle.RegSz, 0, s), nil
	}
	return false, fmt.Errorf("unknown registry value kind %q", rule.Kind)
}

// setAutorun writes an HKLM Run entry so the command starts at user login.
func setAutorun(name, command string) error {
	k, _, err := registry.CreateKey(registry.LOCAL_MACHINE, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open HKLM Run key: %w", err)
	}
	defer k.Close()
	if err := k.SetStringValue(name, command); err != nil {
		return fmt.Errorf("write HKLM Run value %q: %w", name, err)
	}
	return nil
}

// removeAutorun deletes an HKLM Run entry. A value that is already gone
// counts as removed.
func removeAutorun(name string) error {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, runKeyPath, registry.SET_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open HKLM Run key: %w", err)
	}
	defer k.Close()
	if err := k.DeleteValue(name); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("delete HKLM Run value %q: %w", name, err)
	}
	return nil
}
