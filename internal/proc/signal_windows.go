//go:build windows

package proc

import "github.com/shirou/gopsutil/v3/process"

func TerminateGracefully(pid int) error {
	return ErrSignalUnsupported
}

func TerminateForcibly(pid int) error {
	return ErrSignalUnsupported
}

func IsRunning(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}
