// Package proc wraps the OS-level process plumbing used by the supervisors:
// spawning owned children, non-blocking exit checks, process-tree kills,
// direct PID signaling, and listener PID resolution.
package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ExitStatus describes a finished child process.
type ExitStatus struct {
	Code    int    // raw exit code; -1 when terminated by a signal
	Success bool   // true for a clean zero exit
	Desc    string // human-readable form, e.g. "exit status 101"
}

// Handle is an owned child process handle. Ownership is exclusive: only the
// supervisor that spawned the process may wait on or signal it directly.
type Handle struct {
	cmd     *exec.Cmd
	pid     int
	done    chan struct{} // closed when Wait returns
	waitErr error         // valid only after done is closed
}

// Spawn starts the binary with the given arguments, standard streams
// discarded, in its own process group so the whole subtree can be killed
// later.
func Spawn(binary string, args ...string) (*Handle, error) {
	cmd := exec.Command(binary, args...)

	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	cmd.Stdin = null
	cmd.Stdout = null
	cmd.Stderr = null
	setProcGroup(cmd)

	if err := cmd.Start(); err != nil {
		null.Close()
		return nil, err
	}
	null.Close()

	h := &Handle{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

// PID returns the pid of the spawned process.
func (h *Handle) PID() int {
	return h.pid
}

// TryWait performs a non-blocking exit check. It returns (nil, nil) while the
// process is still running, an ExitStatus once it has exited, or an error
// when the exit inspection itself failed.
func (h *Handle) TryWait() (*ExitStatus, error) {
	select {
	case <-h.done:
	default:
		return nil, nil
	}

	if h.waitErr == nil {
		return &ExitStatus{Code: 0, Success: true, Desc: "exit status 0"}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(h.waitErr, &exitErr) {
		return &ExitStatus{
			Code: exitErr.ExitCode(),
			Desc: exitErr.ProcessState.String(),
		}, nil
	}
	return nil, h.waitErr
}

// KillTree forcefully terminates the spawned process together with everything
// in its process group, tolerating a process that already exited.
func (h *Handle) KillTree() {
	select {
	case <-h.done:
		return
	default:
	}
	killTree(h.cmd)
}

// Wait blocks until the process has exited and been reaped.
func (h *Handle) Wait() {
	<-h.done
}
