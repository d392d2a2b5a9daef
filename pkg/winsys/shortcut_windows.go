//go:build windows

package winsys

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"golang.org/x/sys/windows"

	"github.com/deskbundle/deskbundle/pkg/engine"
)

// shortcutFolder maps a location to its machine-wide known folder. Installs
// are per-machine (elevated), so the public desktop and common Start Menu
// apply rather than the current user's.
func shortcutFolder(loc engine.ShortcutLocation) (string, error) {
	switch loc {
	case engine.ShortcutDesktop:
		return windows.KnownFolderPath(windows.FOLDERID_PublicDesktop, 0)
	case engine.ShortcutStartMenu:
		return windows.KnownFolderPath(windows.FOLDERID_CommonPrograms, 0)
	}
	return "", fmt.Errorf("unknown shortcut location %q", loc)
}

// createShortcut writes a .lnk file via the WScript.Shell COM object and
// returns its full path.
func createShortcut(loc engine.ShortcutLocation, name, target, args, workingDir, iconPath string) (string, error) {
	folder, err := shortcutFolder(loc)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create shortcut directory %s: %w", folder, err)
	}
	lnkPath := filepath.Join(folder, name+".lnk")

	// COM is thread-bound; keep the whole operation on one OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		if oleErr, ok := err.(*ole.OleError); ok {
			code := oleErr.Code()
			if code != 0 && code != 1 { // S_OK, S_FALSE
				return "", fmt.Errorf("initialize COM: %w", err)
			}
		}
	}
	defer ole.CoUninitialize()

	shellObj, err := oleutil.CreateObject("WScript.Shell")
	if err != nil {
		return "", fmt.Errorf("create WScript.Shell object: %w", err)
	}
	defer shellObj.Release()

	shell, err := shellObj.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return "", fmt.Errorf("query shell interface: %w", err)
	}
	defer shell.Release()

	scVariant, err := oleutil.CallMethod(shell, "CreateShortcut", lnkPath)
	if err != nil {
		return "", fmt.Errorf("create shortcut object: %w", err)
	}
	sc := scVariant.ToIDispatch()
	defer sc.Release()

	if _, err := oleutil.PutProperty(sc, "TargetPath", target); err != nil {
		return "", fmt.Errorf("set shortcut target: %w", err)
	}
	if args != "" {
		if _, err := oleutil.PutProperty(sc, "Arguments", args); err != nil {
			return "", fmt.Errorf("set shortcut arguments: %w", err)
		}
	}
	if workingDir == "" {
		workingDir = filepath.Dir(target)
	}
	if _, err := oleutil.PutProperty(sc, "WorkingDirectory", workingDir); err != nil {
		return "", fmt.Errorf("set shortcut working directory: %w", err)
	}
	if iconPath != "" {
		if _, err := oleutil.PutProperty(sc, "IconLocation", iconPath+",0"); err != nil {
			return "", fmt.Errorf("set shortcut icon: %w", err)
		}
	}
	if _, err := oleutil.CallMethod(sc, "Save"); err != nil {
		return "", fmt.Errorf("save shortcut %s: %w", lnkPath, err)
	}
	return lnkPath, nil
}

// removeDesktopShortcut deletes a public-desktop .lnk by display name.
// Returns false when the shortcut did not exist.
func removeDesktopShortcut(name string) (bool, error) {
	folder, err := shortcutFolder(engine.ShortcutDesktop)
	if err != nil {
		return false, err
	}
	lnkPath := filepath.Join(folder, name+".lnk")
	if err := os.Remove(lnkPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("remove shortcut %s: %w", lnkPath, err)
	}
	return true, nil
}
