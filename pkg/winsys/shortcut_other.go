//go:build !windows

package winsys

import (
	"fmt"

	"github.com/deskbundle/deskbundle/pkg/engine"
)

func createShortcut(loc engine.ShortcutLocation, name, target, args, workingDir, iconPath string) (string, error) {
	return "", fmt.Errorf("%s shortcut %q requires windows", loc, name)
}

func removeDesktopShortcut(name string) (bool, error) {
	return false, fmt.Errorf("desktop shortcut %q requires windows", name)
}
