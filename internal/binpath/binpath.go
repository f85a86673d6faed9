// Package binpath locates the sidecar daemon executable. The same binary
// serves both the TCP daemon and the orbit runner; it is expected to ship
// next to the warden executable.
package binpath

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Candidates returns the daemon binary names to try, in priority order.
func Candidates() []string {
	if runtime.GOOS == "windows" {
		return []string{"warden_daemon.exe", "warden-daemon.exe"}
	}
	return []string{"warden_daemon", "warden-daemon"}
}

// Resolve finds the daemon binary in the directory of the current executable.
func Resolve() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("unable to resolve executable path: %w", err)
	}
	dir := filepath.Dir(exe)

	names := Candidates()
	for _, name := range names {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("unable to locate daemon binary in %s (tried: %s)",
		dir, strings.Join(names, ", "))
}
