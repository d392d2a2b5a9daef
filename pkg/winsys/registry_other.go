//go:build !windows

package winsys

import (
	"fmt"

	"github.com/deskbundle/deskbundle/pkg/bundle"
)

func detectRegistryValue(rule *bundle.RegistryValueRule) (bool, error) {
	return false, fmt.Errorf("registry detection (%s\\%s) requires windows", rule.Hive, rule.Key)
}

func setAutorun(name, command string) error {
	return fmt.Errorf("autorun entry %q requires windows", name)
}

func removeAutorun(name string) error {
	return fmt.Errorf("autorun entry %q requires windows", name)
}
