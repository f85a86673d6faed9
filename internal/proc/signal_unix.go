//go:build !windows

package proc

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// TerminateGracefully asks the process to shut down with SIGTERM. A process
// that is already gone counts as success.
func TerminateGracefully(pid int) error {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("failed to stop process %d: %w", pid, err)
	}
	return nil
}

// TerminateForcibly kills the process with SIGKILL. A process that is already
// gone counts as success.
func TerminateForcibly(pid int) error {
	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("failed to force-stop process %d: %w", pid, err)
	}
	return nil
}

// IsRunning probes the process with the null signal.
func IsRunning(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return !errors.Is(err, unix.ESRCH)
}
